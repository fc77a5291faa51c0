package pipeline

// Chunker 以字符（rune）为单位做固定窗口 + 重叠的滑动切分。
type Chunker struct {
	size    int
	overlap int
}

// NewChunker 创建切分器，size 为窗口大小，overlap 为相邻窗口的重叠字符数。
func NewChunker(size, overlap int) *Chunker {
	return &Chunker{size: size, overlap: overlap}
}

// Split 将长文本按窗口大小和重叠进行切分，最后一个窗口结束于文本末尾。
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 || c.size <= 0 {
		return nil
	}
	if c.size <= c.overlap {
		// 重叠参数非法时退化为不重叠切分
		return simpleSplit(runes, c.size)
	}

	var chunks []string
	step := c.size - c.overlap
	for i := 0; i < len(runes); i += step {
		end := i + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func simpleSplit(runes []rune, size int) []string {
	var chunks []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
