package constants

// Provider identifies a recognition engine or refinement backend in results and telemetry.
type Provider string

// Recognition engines.
const (
	EngineTesseract Provider = "tesseract"
	EngineOCRSpace  Provider = "ocrspace"
	EngineDocTR     Provider = "doctr"
)

// Refinement backends. The reservoir reports its own identifier regardless of which member answered.
const (
	RefinerGemini    Provider = "gemini"
	RefinerGroq      Provider = "groq"
	RefinerReservoir Provider = "reservoir"
)

// Mode selects recognition routing.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

// ParseMode maps free-form input to a Mode; unknown values fall back to auto.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeLocal, ModeCloud:
		return Mode(s)
	default:
		return ModeAuto
	}
}

// Quality toggles the refinement stage.
type Quality string

const (
	QualityFast Quality = "fast"
	QualityBest Quality = "best"
)

// ParseQuality maps free-form input to a Quality; unknown values fall back to fast.
func ParseQuality(s string) Quality {
	if Quality(s) == QualityBest {
		return QualityBest
	}
	return QualityFast
}
