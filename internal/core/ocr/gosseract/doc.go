// Package gosseract runs tesseract in-process through libtesseract (cgo).
// It is compiled only with the gosseract build tag.
package gosseract
