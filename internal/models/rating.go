package models

// MinRating/MaxRating — допустимые границы оценки.
const (
	MinRating = 1
	MaxRating = 5
)

// Summary — агрегат оценок рецепта.
// Histogram всегда содержит ключи 1..5 (нулевые корзины тоже).
type Summary struct {
	AvgRating   float64
	ReviewCount int
	Histogram   map[int]int
}

// EmptyHistogram возвращает гистограмму с нулями по всем корзинам.
func EmptyHistogram() map[int]int {
	h := make(map[int]int, MaxRating-MinRating+1)
	for r := MinRating; r <= MaxRating; r++ {
		h[r] = 0
	}

	return h
}
