// Package catalog defines the normalized view of the renditions a
// platform offers for one media item.
//
// The extraction layer translates whatever loosely-typed metadata the
// platform returns into this shape exactly once; everything downstream
// (resolver, planner, executor) trusts it. A catalog is immutable after
// construction.
package catalog
