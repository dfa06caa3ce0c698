// Package diff parses unified diff text for a whole pull request into
// per-file hunks with per-side line numbers.
//
// The parser tracks old and new line counters while walking each hunk so
// that every context or added line carries its new-file line number. Those
// numbers are what the review platform accepts as inline comment anchors;
// pure removals have none and can never receive an inline comment.
//
// A file whose hunk headers cannot be parsed, or whose hunk body disagrees
// with the header's line counts, is dropped from the result and reported as
// a MalformedDiffError. One broken file never aborts parsing of the rest.
package diff
