// Package vbi binds to libzvbi, the external Teletext slicing and
// page-assembly library spec §4.F treats as a black-box collaborator. It
// implements exactly the interface spec §4.F requires: a demuxer that
// slices EBU data units out of PES payload bytes, a decoder that
// assembles sliced lines into pages and fires a callback on completion,
// and page fetch/release.
//
// Isolation: Decoder and its underlying libzvbi handles are rebuilt on
// every (re)connect (spec §4.F "Isolation") — New and Close are the only
// lifecycle operations a caller needs.
package vbi
