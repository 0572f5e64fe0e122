// Package imagedoc parses an image document in any of its three accepted
// on-disk forms (XML, JSON, or a bare comma-separated list) into an
// image.Specifier, following the same raw-struct-then-convert shape the
// teacher's manifest reader uses for its own on-disk format (spec §6 "Image
// document format").
package imagedoc

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tapforge/tapforge/image"
	"github.com/tapforge/tapforge/pkgmodel"
	"github.com/tapforge/tapforge/semver"
)

// rawRoot is the common shape all three formats deserialize into before
// conversion to pkgmodel.PackageSpecifier.
type rawRoot struct {
	Name    string `json:"name" xml:"name,attr"`
	Version string `json:"version" xml:"version,attr"`
	OS      string `json:"os,omitempty" xml:"os,attr,omitempty"`
	Arch    string `json:"architecture,omitempty" xml:"architecture,attr,omitempty"`
}

type rawDoc struct {
	XMLName      xml.Name   `json:"-" xml:"Image"`
	Packages     []rawRoot  `json:"packages" xml:"Package"`
	Repositories []string   `json:"repositories,omitempty" xml:"Repository"`
	OS           string     `json:"os,omitempty" xml:"OS,attr,omitempty"`
	Architecture string     `json:"architecture,omitempty" xml:"Architecture,attr,omitempty"`
}

// Parse auto-detects body's format and decodes it into a Builder-backed
// image.Specifier. os/arch are the target values to use when the document
// itself doesn't specify them; the document may still override per field.
func Parse(body []byte, defaultOS string, defaultArch pkgmodel.CpuArchitecture) (*image.Specifier, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("imagedoc: empty document")
	}

	var doc rawDoc
	switch trimmed[0] {
	case '<':
		if err := xml.Unmarshal([]byte(trimmed), &doc); err != nil {
			return nil, errors.Wrap(err, "imagedoc: parsing XML")
		}
	case '[':
		var roots []rawRoot
		if err := json.Unmarshal([]byte(trimmed), &roots); err != nil {
			return nil, errors.Wrap(err, "imagedoc: parsing JSON")
		}
		doc.Packages = roots
	case '{':
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return nil, errors.Wrap(err, "imagedoc: parsing JSON")
		}
	default:
		var err error
		doc, err = parseCommaList(trimmed)
		if err != nil {
			return nil, err
		}
	}

	return toSpecifier(doc, defaultOS, defaultArch)
}

// parseCommaList handles "name[:version][,name[:version]...]" (spec §6):
// no repositories, no per-package OS/arch, target inherited wholesale.
func parseCommaList(body string) (rawDoc, error) {
	var doc rawDoc
	for _, field := range strings.Split(body, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		name, version, _ := strings.Cut(field, ":")
		doc.Packages = append(doc.Packages, rawRoot{Name: strings.TrimSpace(name), Version: strings.TrimSpace(version)})
	}
	return doc, nil
}

func toSpecifier(doc rawDoc, defaultOS string, defaultArch pkgmodel.CpuArchitecture) (*image.Specifier, error) {
	b := image.NewBuilder()

	os := doc.OS
	if os == "" {
		os = defaultOS
	}
	b.OS(os)

	arch := defaultArch
	if doc.Architecture != "" {
		arch = pkgmodel.ParseArch(doc.Architecture)
	}
	b.Arch(arch)

	for _, url := range doc.Repositories {
		b.AddRepository(url)
	}

	for _, rp := range doc.Packages {
		vs, err := semver.ParseSpecifier(rp.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "imagedoc: package %s", rp.Name)
		}
		ps := pkgmodel.PackageSpecifier{
			Name:    rp.Name,
			Version: vs,
			OS:      rp.OS,
			Arch:    pkgmodel.ParseArch(rp.Arch),
		}
		b.AddRoot(ps)
	}

	return b.Build()
}
