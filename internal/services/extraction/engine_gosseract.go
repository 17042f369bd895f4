//go:build gosseract

package extraction

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr/gosseract"
)

func addBuildEngines(e Engines) {
	e[common.EngineGosseract] = func(_ context.Context, cfg *common.Config, logger *slog.Logger) (ocr.Engine, error) {
		return gosseract.NewEngine(cfg.OCR.TessdataDir, logger), nil
	}
}
