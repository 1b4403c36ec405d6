package translator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// TestMatrixMultiplyIdentity 单位矩阵乘任何矩阵不变
func TestMatrixMultiplyIdentity(t *testing.T) {
	m := TransformMatrix{A: 2, B: 0, C: 0, D: 3, E: 10, F: 20}

	left := IdentityMatrix().Multiply(m)
	right := m.Multiply(IdentityMatrix())

	if left != m || right != m {
		t.Fatalf("单位矩阵乘法改变了结果: %+v / %+v", left, right)
	}
	t.Log("✓ 单位矩阵性质成立")
}

// TestMatrixApply 平移加缩放的点变换
func TestMatrixApply(t *testing.T) {
	// 缩放 (2,3) 再平移 (10,20)
	m := TransformMatrix{A: 2, B: 0, C: 0, D: 3, E: 10, F: 20}

	x, y := m.Apply(1, 1)
	if !almostEqual(x, 12) || !almostEqual(y, 23) {
		t.Fatalf("变换结果错误: (%.2f, %.2f)", x, y)
	}
	t.Log("✓ 点变换正确")
}

// findPlacement 按名称找一次图片绘制
func findPlacement(placements []imagePlacement, name string) (BoundingBox, bool) {
	for _, p := range placements {
		if p.name == name {
			return p.box, true
		}
	}
	return BoundingBox{}, false
}

// TestScanImagePlacements 典型的 q cm Do Q 序列定位图片
func TestScanImagePlacements(t *testing.T) {
	// 100x50 的图片，左下角放在 (20, 30)，页高 200
	content := []byte("q 100 0 0 50 20 30 cm /Im1 Do Q")

	placements := scanImagePlacements(content, 200)
	box, ok := findPlacement(placements, "Im1")
	if !ok {
		t.Fatalf("未找到 Im1 的位置: %v", placements)
	}

	// 左上角坐标系: y = 200 - (30 + 50) = 120
	if !almostEqual(box.X, 20) || !almostEqual(box.Y, 120) {
		t.Errorf("位置错误: (%.2f, %.2f)", box.X, box.Y)
	}
	if !almostEqual(box.Width, 100) || !almostEqual(box.Height, 50) {
		t.Errorf("尺寸错误: %.2fx%.2f", box.Width, box.Height)
	}
	t.Logf("✓ Im1 定位在 (%.0f, %.0f) %.0fx%.0f", box.X, box.Y, box.Width, box.Height)
}

// TestScanImagePlacementsNested 嵌套 q/Q 中的累积变换
func TestScanImagePlacementsNested(t *testing.T) {
	// 外层平移 (50, 100)，内层缩放放置
	content := []byte("q 1 0 0 1 50 100 cm q 80 0 0 40 10 20 cm /Im2 Do Q Q")

	placements := scanImagePlacements(content, 300)
	box, ok := findPlacement(placements, "Im2")
	if !ok {
		t.Fatalf("未找到 Im2 的位置: %v", placements)
	}

	// 图片左下角 = (50+10, 100+20)，顶边 = 300 - (120+40) = 140
	if !almostEqual(box.X, 60) || !almostEqual(box.Y, 140) {
		t.Errorf("位置错误: (%.2f, %.2f)", box.X, box.Y)
	}
	if !almostEqual(box.Width, 80) || !almostEqual(box.Height, 40) {
		t.Errorf("尺寸错误: %.2fx%.2f", box.Width, box.Height)
	}
	t.Log("✓ 嵌套图形状态的累积变换正确")
}

// TestScanImagePlacementsRestoresState Q 恢复后的 Do 不受前一个 cm 影响
func TestScanImagePlacementsRestoresState(t *testing.T) {
	content := []byte("q 100 0 0 100 500 500 cm Q q 60 0 0 30 10 10 cm /Im3 Do Q")

	placements := scanImagePlacements(content, 100)
	box, ok := findPlacement(placements, "Im3")
	if !ok {
		t.Fatalf("未找到 Im3 的位置: %v", placements)
	}
	if !almostEqual(box.X, 10) || !almostEqual(box.Width, 60) {
		t.Errorf("图形状态未正确恢复: %+v", box)
	}
	t.Log("✓ Q 正确恢复图形状态")
}

// TestScanImagePlacementsIgnoresStringsAndInline 字符串与内联图片不干扰扫描
func TestScanImagePlacementsIgnoresStringsAndInline(t *testing.T) {
	content := []byte("BT (fake /Im9 Do q Q) Tj ET BI /W 2 /H 2 ID \x00\x01\x02\x03 EI q 10 0 0 10 0 0 cm /Im4 Do Q")

	placements := scanImagePlacements(content, 50)
	if _, found := findPlacement(placements, "Im9"); found {
		t.Error("字符串里的假操作符被误识别")
	}
	if _, found := findPlacement(placements, "Im4"); !found {
		t.Errorf("真实的 Do 未识别: %v", placements)
	}
	t.Log("✓ 字符串与内联图片被正确跳过")
}
