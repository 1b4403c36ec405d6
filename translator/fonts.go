package translator

import (
	"log"
	"os"
)

// cjkFontCandidates 常见的 CJK 字体路径（Linux / macOS / Windows）
// 输出 PDF 与图片叠字都需要一个覆盖中日文字形的 TTF
var cjkFontCandidates = []string{
	// Linux
	"/usr/share/fonts/truetype/noto/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/truetype/wqy/wqy-microhei.ttc",
	"/usr/share/fonts/truetype/wqy/wqy-zenhei.ttc",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	// macOS
	"/System/Library/Fonts/Hiragino Sans GB.ttc",
	"/System/Library/Fonts/STHeiti Light.ttc",
	"/Library/Fonts/Arial Unicode.ttf",
	"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
	// Windows
	"C:\\Windows\\Fonts\\msyh.ttc",
	"C:\\Windows\\Fonts\\simhei.ttf",
	"C:\\Windows\\Fonts\\simsun.ttc",
}

// FindCJKFont 查找可用的 CJK 字体文件
// preferred 优先（通常来自配置），找不到任何字体时返回空串，调用方退化到内置字体
func FindCJKFont(preferred string) string {
	if preferred != "" {
		if _, err := os.Stat(preferred); err == nil {
			return preferred
		}
		log.Printf("警告：配置的字体文件不存在: %s", preferred)
	}

	for _, path := range cjkFontCandidates {
		if _, err := os.Stat(path); err == nil {
			log.Printf("找到 CJK 字体: %s", path)
			return path
		}
	}

	log.Printf("警告：未找到 CJK 字体，中日文输出可能出现乱码")
	return ""
}
