package translator

import (
	"math"
	"strconv"
	"strings"
)

// TransformMatrix PDF 变换矩阵 [a b c d e f]
type TransformMatrix struct {
	A, B, C, D, E, F float64
}

// IdentityMatrix 单位矩阵
func IdentityMatrix() TransformMatrix {
	return TransformMatrix{A: 1, D: 1}
}

// Multiply 矩阵乘法（m 左乘 n，即先应用 m 再应用 n）
func (m TransformMatrix) Multiply(n TransformMatrix) TransformMatrix {
	return TransformMatrix{
		A: m.A*n.A + m.B*n.C,
		B: m.A*n.B + m.B*n.D,
		C: m.C*n.A + m.D*n.C,
		D: m.C*n.B + m.D*n.D,
		E: m.E*n.A + m.F*n.C + n.E,
		F: m.E*n.B + m.F*n.D + n.F,
	}
}

// Apply 变换一个点
func (m TransformMatrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// imagePlacement 内容流中一次图片绘制：XObject 名称与页面坐标系下的包围盒
type imagePlacement struct {
	name string
	box  BoundingBox
}

// scanImagePlacements 从页面内容流中提取图片绘制位置
// 跟踪 q/Q 图形状态栈与 cm 累积矩阵；Do 绘制的是单位正方形经 CTM 变换后的区域。
// 返回的包围盒已换算为左上角原点坐标
func scanImagePlacements(content []byte, pageHeight float64) []imagePlacement {
	var placements []imagePlacement

	ctm := IdentityMatrix()
	var stack []TransformMatrix
	var operands []string

	tokens := tokenizeContent(content)
	for _, tok := range tokens {
		switch tok {
		case "q":
			stack = append(stack, ctm)
			operands = operands[:0]
		case "Q":
			if len(stack) > 0 {
				ctm = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			operands = operands[:0]
		case "cm":
			if len(operands) >= 6 {
				ops := operands[len(operands)-6:]
				ctm = parseMatrix(ops).Multiply(ctm)
			}
			operands = operands[:0]
		case "Do":
			if len(operands) >= 1 {
				name := operands[len(operands)-1]
				if strings.HasPrefix(name, "/") {
					placements = append(placements, imagePlacement{
						name: strings.TrimPrefix(name, "/"),
						box:  unitSquareBox(ctm, pageHeight),
					})
				}
			}
			operands = operands[:0]
		default:
			if isOperandToken(tok) {
				operands = append(operands, tok)
			} else {
				// 其他操作符消费掉操作数
				operands = operands[:0]
			}
		}
	}

	return placements
}

// unitSquareBox 单位正方形经矩阵变换后的轴对齐包围盒，转为左上角原点
func unitSquareBox(m TransformMatrix, pageHeight float64) BoundingBox {
	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, p := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		x, y := m.Apply(p[0], p[1])
		xs = append(xs, x)
		ys = append(ys, y)
	}

	minX, maxX := minMax(xs)
	minY, maxY := minMax(ys)

	return BoundingBox{
		X:      minX,
		Y:      pageHeight - maxY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

func minMax(vs []float64) (float64, float64) {
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// tokenizeContent 粗粒度切分内容流
// 括号字符串按嵌套与转义整体跳过，十六进制串与字典/数组定界符单独成词；
// 内联图片数据（BI..EI）整段跳过。提取图片位置只需要数字、名称与操作符
func tokenizeContent(content []byte) []string {
	var tokens []string
	i := 0
	n := len(content)

	for i < n {
		c := content[i]

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0:
			i++
		case c == '(':
			// 字符串：跳到配对的右括号
			depth := 1
			i++
			for i < n && depth > 0 {
				switch content[i] {
				case '\\':
					i++
				case '(':
					depth++
				case ')':
					depth--
				}
				i++
			}
			tokens = append(tokens, "()")
		case c == '<' || c == '>' || c == '[' || c == ']' || c == '{' || c == '}':
			i++
		case c == '%':
			// 注释到行尾
			for i < n && content[i] != '\n' {
				i++
			}
		default:
			start := i
			for i < n && !isDelimiter(content[i]) {
				i++
			}
			tok := string(content[start:i])
			if tok == "BI" {
				// 内联图片：跳到 EI
				for i+1 < n {
					if content[i] == 'E' && content[i+1] == 'I' {
						i += 2
						break
					}
					i++
				}
				continue
			}
			tokens = append(tokens, tok)
		}
	}

	return tokens
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '%':
		return true
	}
	return false
}

// isOperandToken 数字或名称可以作为操作数
func isOperandToken(tok string) bool {
	if strings.HasPrefix(tok, "/") {
		return true
	}
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

func parseMatrix(ops []string) TransformMatrix {
	vals := make([]float64, 6)
	for i := 0; i < 6 && i < len(ops); i++ {
		vals[i], _ = strconv.ParseFloat(ops[i], 64)
	}
	return TransformMatrix{A: vals[0], B: vals[1], C: vals[2], D: vals[3], E: vals[4], F: vals[5]}
}
