package fields

// chunkText 将超长文本按固定大小与重叠切块
// 重叠用于避免字段值恰好被切断在块边界上
func chunkText(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	if chunkSize <= 0 || len(runes) <= chunkSize {
		return []string{text}
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}

	var chunks []string
	step := chunkSize - overlap
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
