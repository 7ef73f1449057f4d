// Package language normalizes BCP-47 language tags for rendition matching.
package language
