//go:build !gosseract

package extraction

// addBuildEngines adds nothing without the gosseract tag.
func addBuildEngines(Engines) {}
