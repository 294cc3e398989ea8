// Package export renders layout views to image files. SVGRenderer and
// PNGRenderer are session renderers that keep the latest frame and write
// it to their canvas when closed.
package export
