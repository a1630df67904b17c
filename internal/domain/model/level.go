package model

// Level is a maturity band derived from an overall score.
type Level string

// Maturity levels, lowest first.
const (
	LevelInicial    Level = "inicial"
	LevelBasico     Level = "basico"
	LevelIntermedio Level = "intermedio"
	LevelAvanzado   Level = "avanzado"
	LevelOptimizado Level = "optimizado"
)

// Levels lists every maturity level from lowest to highest.
func Levels() []Level {
	return []Level{LevelInicial, LevelBasico, LevelIntermedio, LevelAvanzado, LevelOptimizado}
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	for _, known := range Levels() {
		if l == known {
			return true
		}
	}
	return false
}
