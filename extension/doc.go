// Package extension implements the Extension Registry (spec §4.F): the
// mapping between tag URIs and native Go types, realized as a versioned,
// ordered chain of Extensions each contributing converters, compressors,
// tag-handle shortcuts, and a standard-version requirement. A Registry
// resolves a tag URI to a Converter on read and a native value's type to
// a Converter on write, with later-registered extensions taking
// precedence unless explicitly appended (spec §4.F, "Ordering").
package extension
