// Package images renders featured images for blog posts.
//
// Images are flat pillar-coloured cards written under the public
// images/blog directory. When an S3 bucket is configured each rendered file
// is mirrored there as well.
package images
