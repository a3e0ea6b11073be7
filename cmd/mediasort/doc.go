// Command mediasort ingests a tree of photos and videos into a dated
// archive, detecting byte-identical duplicates along the way.
package main
