package tokenizer

// EstimatorTokenizer 基于字符数估算 token：CJK 约 1.5 字符/token，其余约 4 字符/token。
type EstimatorTokenizer struct{}

// NewEstimatorTokenizer creates the estimator.
func NewEstimatorTokenizer() *EstimatorTokenizer { return &EstimatorTokenizer{} }

// 以 1/12 token 为单位计费，避免浮点误差
const (
	unitsPerToken  = 12
	cjkRuneUnits   = 8 // 1.5 字符/token
	otherRuneUnits = 3 // 4 字符/token
)

func runeCost(r rune) int {
	if isCJK(r) {
		return cjkRuneUnits
	}
	return otherRuneUnits
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	total := 0
	for _, r := range text {
		total += runeCost(r)
	}
	n := total / unitsPerToken
	if n == 0 {
		n = 1
	}
	return n, nil
}

func (e *EstimatorTokenizer) Truncate(text string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return "", nil
	}
	budget := maxTokens * unitsPerToken
	total := 0
	for i, r := range text {
		total += runeCost(r)
		if total > budget {
			return text[:i], nil
		}
	}
	return text, nil
}

func (e *EstimatorTokenizer) Name() string { return "estimator" }

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
		(r >= 0x3400 && r <= 0x4DBF) || // Extension A
		(r >= 0x20000 && r <= 0x2A6DF) || // Extension B
		(r >= 0xF900 && r <= 0xFAFF) || // Compatibility Ideographs
		(r >= 0x3000 && r <= 0x303F) || // Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
