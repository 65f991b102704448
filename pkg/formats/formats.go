// Package formats provides encoders and parsers for animated point cloud
// file formats.
package formats
