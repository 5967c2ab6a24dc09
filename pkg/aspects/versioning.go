package aspects

import (
	"regexp"
	"strings"

	"github.com/platinummonkey/apicompiler/pkg/confmerge"
	"github.com/platinummonkey/apicompiler/pkg/diag"
	"github.com/platinummonkey/apicompiler/pkg/model"
)

// DefaultConfigVersion is written as config_version when the configuration has none
const DefaultConfigVersion = 3

// VersionKey holds the api version implied by an interface's package
var VersionKey = model.NewKey[string]("versioning.version", model.Merged)

// majorVersion matches the last package component of a versioned api: v1, v2beta1, v1alpha
var majorVersion = regexp.MustCompile(`^v\d+(p\d+)?((alpha|beta)\d*)?$`)

// Versioning derives api versions from package names and fills in config_version
type Versioning struct {
	model.BaseAspect
	m *model.Model
}

func NewVersioning() *Versioning {
	return &Versioning{BaseAspect: model.BaseAspect{AspectName: "versioning"}}
}

func (a *Versioning) StartMerging(m *model.Model) {
	a.m = m
	m.DeclareSlot(model.InterfaceKind, VersionKey, false)
}

func (a *Versioning) Merge(el model.Element) {
	iface, ok := el.(*model.Interface)
	if !ok {
		return
	}
	if v := PackageVersion(iface.File().Package()); v != "" {
		model.SetAttr(iface, VersionKey, v)
	}
}

// EndMerging rejects config_version values outside 1..DefaultConfigVersion
func (a *Versioning) EndMerging(m *model.Model) {
	cfg, _, err := inputConfig(m)
	if err != nil {
		return
	}
	cv := cfg.Message("config_version")
	if cv == nil {
		return
	}
	if v, ok := cv.Scalar("value"); ok && (v.Uint() < 1 || v.Uint() > DefaultConfigVersion) {
		m.AddDiag(diag.Errorf(cfg.GetLocation(cv, "value", ""),
			"config_version %d is not supported, expected 1 to %d", v.Uint(), DefaultConfigVersion))
	}
}

func (a *Versioning) StartNormalization(m *model.Model, b *confmerge.Builder) {
	b.WithBuilder("config_version", func(cb *confmerge.Builder) {
		if !cb.Has("value") {
			cb.SetPropagatedValue("value", uint32(DefaultConfigVersion), nil)
		}
	})
}

// Normalize sets the version of an interface's api entry unless it is configured
func (a *Versioning) Normalize(el model.Element, b *confmerge.Builder) {
	version, ok := model.Attr(el, VersionKey)
	if !ok {
		return
	}
	i := apiIndex(b, el.FullName())
	if i < 0 {
		return
	}
	b.WithBuilderAt("apis", i, func(ab *confmerge.Builder) {
		if !ab.Has("version") {
			ab.SetValue("version", "", version, el.Location())
		}
	})
}

// Lint reports an api whose configured version disagrees with its package
func (a *Versioning) Lint(el model.Element) {
	derived, ok := model.Attr(el, VersionKey)
	if !ok {
		return
	}
	cfg := a.m.ServiceConfig()
	if cfg == nil {
		return
	}
	for i := 0; i < cfg.Len("apis"); i++ {
		api := cfg.MessageAt("apis", i)
		if api.GetString("name") != el.FullName() {
			continue
		}
		if v := api.GetString("version"); v != "" && v != derived {
			a.m.ReportLint(a.Name(), "version-mismatch", el, diag.Warning,
				"api %s declares version %q but its package implies %q", el.FullName(), v, derived)
		}
	}
}

// PackageVersion returns the version component that ends a package name, or ""
func PackageVersion(pkg string) string {
	last := pkg[strings.LastIndexByte(pkg, '.')+1:]
	if majorVersion.MatchString(last) {
		return last
	}
	return ""
}

func apiIndex(b *confmerge.Builder, name string) int {
	for i := 0; i < b.Len("apis"); i++ {
		if b.MessageAt("apis", i).GetString("name") == name {
			return i
		}
	}
	return -1
}
