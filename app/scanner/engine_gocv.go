//go:build gocv

package scanner

import (
	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/vision"
)

func newEngine(cfg *config.Config) vision.Engine {
	return vision.NewGoCVEngine(engineOptions(cfg))
}
