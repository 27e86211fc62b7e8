package extension

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/asdf-format/asdf-go/compress"
	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
	"github.com/gobwas/glob"
)

// TagDefinition names a tag URI an Extension contributes, plus the
// schema URI(s) that validate it (spec §4.F, "tag definitions (tag URI,
// optional schema URI(s))").
type TagDefinition struct {
	URI        string
	SchemaURIs []string
}

// Extension is a named, versioned bundle of converters, tag definitions,
// compressors, and tag-handle shortcuts (spec §4.F).
type Extension struct {
	// Name identifies the extension, e.g. "asdf-format.org/core".
	Name string
	// Version is the extension's own release version, distinct from
	// any individual tag's version.
	Version format.Version
	// StandardRequirement is the minimum standard version this
	// extension's tags assume.
	StandardRequirement format.Version
	// Converters are the type<->tag translators this extension
	// contributes.
	Converters []Converter
	// Tags lists every tag URI this extension defines, independent of
	// which converter (if any) currently handles it — used by the
	// schema package's TagSchemaResolver.
	Tags []TagDefinition
	// Compressors are compression codecs this extension contributes
	// beyond the four built into the compress package.
	Compressors []Compressor
	// TagHandles maps a YAML tag-handle shortcut (e.g. "!core!") to the
	// URI prefix it expands to, for emitting shortest-form tags
	// (spec §4.C, "Serialization").
	TagHandles map[string]string
}

type compiledConverter struct {
	conv     Converter
	patterns []glob.Glob
	// tagVersions holds, for each non-wildcard tag string, its parsed
	// base+version, used by the version-fallback search.
	tagVersions []taggedVersion
}

type taggedVersion struct {
	tag     string
	base    string
	version format.Version
}

var versionSuffix = regexp.MustCompile(`^(.*)-(\d+)\.(\d+)\.(\d+)$`)

func splitTagVersion(tag string) (base string, version format.Version, ok bool) {
	m := versionSuffix.FindStringSubmatch(tag)
	if m == nil {
		return "", format.Version{}, false
	}

	major, _ := strconv.Atoi(m[2])
	minor, _ := strconv.Atoi(m[3])
	patch, _ := strconv.Atoi(m[4])

	return m[1], format.Version{Major: major, Minor: minor, Patch: patch}, true
}

// Registry resolves tag URIs and native Go types to Converters across an
// ordered set of installed Extensions (spec §4.F). Extensions registered
// via Register take precedence over earlier ones; Append adds one at
// the back of the search order instead, "so this lets applications
// override library defaults" by using Register for app-level extensions
// and Append for library defaults installed up front.
type Registry struct {
	extensions []*Extension
	compiled   map[*Extension][]*compiledConverter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{compiled: make(map[*Extension][]*compiledConverter)}
}

// Register installs ext so its converters are consulted before every
// previously-registered extension's.
func (r *Registry) Register(ext *Extension) error {
	compiled, err := compileExtension(ext)
	if err != nil {
		return err
	}

	r.extensions = append([]*Extension{ext}, r.extensions...)
	r.compiled[ext] = compiled
	r.installCompressors(ext)

	return nil
}

// Append installs ext so its converters are only consulted after every
// previously-registered extension's (spec §4.F, "Ordering": "unless
// registered via the 'append' API").
func (r *Registry) Append(ext *Extension) error {
	compiled, err := compileExtension(ext)
	if err != nil {
		return err
	}

	r.extensions = append(r.extensions, ext)
	r.compiled[ext] = compiled
	r.installCompressors(ext)

	return nil
}

func (r *Registry) installCompressors(ext *Extension) {
	for _, c := range ext.Compressors {
		compress.Register(c.Code, c.Codec)
	}
}

func compileExtension(ext *Extension) ([]*compiledConverter, error) {
	out := make([]*compiledConverter, 0, len(ext.Converters))

	for _, conv := range ext.Converters {
		cc := &compiledConverter{conv: conv}

		for _, pat := range conv.Tags() {
			g, err := glob.Compile(pat, '/', ':')
			if err != nil {
				return nil, fmt.Errorf("extension: %s: invalid tag pattern %q: %w", ext.Name, pat, err)
			}

			cc.patterns = append(cc.patterns, g)

			if base, ver, ok := splitTagVersion(pat); ok {
				cc.tagVersions = append(cc.tagVersions, taggedVersion{tag: pat, base: base, version: ver})
			}
		}

		out = append(out, cc)
	}

	return out, nil
}

// Extensions returns the installed extensions, most-recently-Register'd
// first (the order converter/tag lookups search in).
func (r *Registry) Extensions() []*Extension {
	return r.extensions
}

// ConverterForTag resolves tagURI to a Converter following spec §4.F's
// read-side selection rules. ok reports whether a converter was found;
// when it's false, warn (if non-nil) explains why and the caller should
// preserve the node as raw (spec §4.G step 6, §7 "Resource"/"Version
// mismatch").
func (r *Registry) ConverterForTag(tagURI string) (conv Converter, warn *errs.Warning, ok bool) {
	for _, ext := range r.extensions {
		for _, cc := range r.compiled[ext] {
			for _, pat := range cc.patterns {
				if pat.Match(tagURI) {
					return cc.conv, nil, true
				}
			}
		}
	}

	base, reqVer, hasVer := splitTagVersion(tagURI)
	if !hasVer {
		return nil, &errs.Warning{Kind: errs.WarningMissingExtension, Message: fmt.Sprintf("no extension registered for tag %q", tagURI)}, false
	}

	var (
		bestConv    Converter
		bestVersion format.Version
		foundBase   bool
		foundMajor  bool
	)

	for _, ext := range r.extensions {
		for _, cc := range r.compiled[ext] {
			for _, tv := range cc.tagVersions {
				if tv.base != base {
					continue
				}

				foundBase = true

				if tv.version.Major != reqVer.Major {
					continue
				}

				foundMajor = true

				if tv.version.Compare(reqVer) <= 0 && (bestConv == nil || tv.version.Compare(bestVersion) > 0) {
					bestConv = cc.conv
					bestVersion = tv.version
				}
			}
		}
	}

	if bestConv != nil {
		return bestConv, &errs.Warning{
			Kind:    errs.WarningVersionMismatch,
			Message: fmt.Sprintf("tag %q: falling back to registered version %s", tagURI, bestVersion),
		}, true
	}

	if foundMajor || foundBase {
		return nil, &errs.Warning{Kind: errs.WarningUnknownTag, Message: fmt.Sprintf("tag %q: no compatible converter version registered", tagURI)}, false
	}

	return nil, &errs.Warning{Kind: errs.WarningMissingExtension, Message: fmt.Sprintf("no extension registered for tag %q", tagURI)}, false
}

// ConverterForType resolves a native Go value to the Converter and tag
// that should serialize it (spec §4.F, "Selection rules", "On write").
// typeName is the fully-qualified type name (fmt.Sprintf("%T", obj));
// callers construct it so this package never imports reflect for the
// common case of an exact match.
func (r *Registry) ConverterForType(obj any, typeName string, ctx *Context) (Converter, string, error) {
	for _, ext := range r.extensions {
		for _, cc := range r.compiled[ext] {
			if !containsString(cc.conv.Types(), typeName) {
				continue
			}

			tag, ok := cc.conv.SelectTag(obj, cc.conv.Tags(), ctx)
			if !ok {
				continue
			}

			return cc.conv, tag, nil
		}
	}

	return nil, "", fmt.Errorf("%w: no converter registered for type %q", errs.ErrSerializationError, typeName)
}

// ExtensionFor returns the Extension whose converter matches tagURI,
// used to build a document's history/extensions record on write
// (spec §4.G step 3: "record all extensions whose converters fired
// into history/extensions").
func (r *Registry) ExtensionFor(tagURI string) (*Extension, bool) {
	for _, ext := range r.extensions {
		for _, cc := range r.compiled[ext] {
			for _, pat := range cc.patterns {
				if pat.Match(tagURI) {
					return ext, true
				}
			}
		}
	}

	return nil, false
}

// TagSchemas implements schema.TagSchemaResolver: it returns the schema
// URIs registered (by any installed extension) for tagURI.
func (r *Registry) TagSchemas(tagURI string) []string {
	var out []string

	for _, ext := range r.extensions {
		for _, td := range ext.Tags {
			if td.URI == tagURI {
				out = append(out, td.SchemaURIs...)
			}
		}
	}

	return out
}

// TagHandle returns the shortest registered tag-handle shortcut for a
// full tag URI, if any extension declared one covering it
// (spec §4.C, "Serialization": "tags written with shortest form
// compatible with the extensions' registered yaml_tag_handles").
func (r *Registry) TagHandle(tagURI string) (handle, suffix string, ok bool) {
	for _, ext := range r.extensions {
		for h, prefix := range ext.TagHandles {
			if len(tagURI) > len(prefix) && tagURI[:len(prefix)] == prefix {
				return h, tagURI[len(prefix):], true
			}
		}
	}

	return "", "", false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
