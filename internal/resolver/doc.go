// Package resolver decides which rendition combination satisfies a
// language preference: matching audio, subtitle fallback, or nothing.
//
// Resolution is a pure function of the catalog and the preference; it
// performs no I/O, so policy is testable with synthetic catalogs.
package resolver
