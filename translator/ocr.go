package translator

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// lookPath 探测可执行文件，测试可替换以模拟引擎缺失
var lookPath = exec.LookPath

// OCRRegion 图片中检测到的一个文字区域
type OCRRegion struct {
	Box           BoundingBox
	Text          string
	Confidence    float64
	LowConfidence bool
}

// OCRAdapter Tesseract OCR 适配器
// 通过子进程调用 tesseract，解析 TSV 输出得到词级包围盒后按行合并
type OCRAdapter struct {
	Binary              string
	ConfidenceThreshold float64

	// run 可注入，测试时替换以免依赖真实的 tesseract
	run func(binary string, args ...string) ([]byte, error)
}

// NewOCRAdapter 创建 OCR 适配器
// 启动时探测一次引擎，缺失立即报配置错误，而不是在每张图片上反复失败
func NewOCRAdapter(binary string, confidenceThreshold float64) (*OCRAdapter, error) {
	if binary == "" {
		binary = "tesseract"
	}
	if _, err := lookPath(binary); err != nil {
		return nil, fmt.Errorf("%w: 未找到 %s，请安装 Tesseract 并确认在 PATH 上", ErrEngineUnavailable, binary)
	}

	return &OCRAdapter{
		Binary:              binary,
		ConfidenceThreshold: confidenceThreshold,
		run: func(binary string, args ...string) ([]byte, error) {
			return exec.Command(binary, args...).Output()
		},
	}, nil
}

// Detect 检测图片中的文字区域
// 返回空序列表示图片中没有文字，不视为错误
func (a *OCRAdapter) Detect(imageData []byte, hint Language) ([]OCRRegion, error) {
	tmp, err := os.CreateTemp("", "pdftrans-ocr-*.png")
	if err != nil {
		return nil, fmt.Errorf("创建 OCR 临时文件失败: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(imageData); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("写入 OCR 临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("关闭 OCR 临时文件失败: %w", err)
	}

	out, err := a.run(a.Binary, tmpPath, "stdout", "-l", hint.TesseractPack(), "--psm", "6", "tsv")
	if err != nil {
		return nil, fmt.Errorf("tesseract 执行失败: %w", err)
	}

	words := a.parseTSV(string(out))
	return a.groupLines(words), nil
}

// tsvWord TSV 输出中的一个词
type tsvWord struct {
	block, par, line int
	box              BoundingBox
	conf             float64
	text             string
}

// parseTSV 解析 tesseract 的 TSV 输出
// 列: level page block par line word left top width height conf text
func (a *OCRAdapter) parseTSV(output string) []tsvWord {
	var words []tsvWord

	for _, line := range strings.Split(output, "\n") {
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}

		level, err := strconv.Atoi(cols[0])
		if err != nil || level != 5 {
			// 只取词级别的行（level 5），跳过表头和结构行
			continue
		}

		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}

		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}

		block, _ := strconv.Atoi(cols[2])
		par, _ := strconv.Atoi(cols[3])
		lineNum, _ := strconv.Atoi(cols[4])
		left, _ := strconv.ParseFloat(cols[6], 64)
		top, _ := strconv.ParseFloat(cols[7], 64)
		width, _ := strconv.ParseFloat(cols[8], 64)
		height, _ := strconv.ParseFloat(cols[9], 64)

		words = append(words, tsvWord{
			block: block,
			par:   par,
			line:  lineNum,
			box:   BoundingBox{X: left, Y: top, Width: width, Height: height},
			conf:  conf,
			text:  text,
		})
	}

	return words
}

// groupLines 把同一行的词合并为一个区域
// 置信度取行内平均；低于阈值的区域依旧返回，只打低置信标记，由调用方决定取舍
func (a *OCRAdapter) groupLines(words []tsvWord) []OCRRegion {
	if len(words) == 0 {
		return nil
	}

	type lineKey struct{ block, par, line int }
	order := make([]lineKey, 0)
	lines := make(map[lineKey][]tsvWord)

	for _, w := range words {
		key := lineKey{w.block, w.par, w.line}
		if _, seen := lines[key]; !seen {
			order = append(order, key)
		}
		lines[key] = append(lines[key], w)
	}

	regions := make([]OCRRegion, 0, len(order))
	for _, key := range order {
		ws := lines[key]

		minX, minY := ws[0].box.X, ws[0].box.Y
		maxX := ws[0].box.X + ws[0].box.Width
		maxY := ws[0].box.Y + ws[0].box.Height
		confSum := 0.0
		texts := make([]string, 0, len(ws))

		for _, w := range ws {
			if w.box.X < minX {
				minX = w.box.X
			}
			if w.box.Y < minY {
				minY = w.box.Y
			}
			if w.box.X+w.box.Width > maxX {
				maxX = w.box.X + w.box.Width
			}
			if w.box.Y+w.box.Height > maxY {
				maxY = w.box.Y + w.box.Height
			}
			confSum += w.conf
			texts = append(texts, w.text)
		}

		conf := confSum / float64(len(ws))
		regions = append(regions, OCRRegion{
			Box:           BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY},
			Text:          strings.Join(texts, " "),
			Confidence:    conf,
			LowConfidence: conf < a.ConfidenceThreshold,
		})
	}

	return regions
}
