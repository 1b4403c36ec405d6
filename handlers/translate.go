package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pdf-translator-web/config"
	"pdf-translator-web/middleware"
	"pdf-translator-web/models"
	"pdf-translator-web/translator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler 聚合 HTTP 层依赖：任务存储、配置与进度事件广播
type Handler struct {
	Store  models.TaskStore
	Cfg    *config.Config
	broker *eventBroker
}

// New 创建处理器
func New(store models.TaskStore, cfg *config.Config) *Handler {
	return &Handler{
		Store:  store,
		Cfg:    cfg,
		broker: newEventBroker(),
	}
}

// userDir 用户数据目录，按会话隔离
func (h *Handler) userDir(sessionID string, sub string) string {
	return filepath.Join(h.Cfg.DataDir, "users", sessionID, sub)
}

// UploadHandler 接收上传的 PDF，创建 pending 任务
func (h *Handler) UploadHandler(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的会话"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传文件"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "只支持 .pdf 文件"})
		return
	}

	taskID := uuid.New().String()
	uploadDir := h.userDir(sessionID, "uploads")
	os.MkdirAll(uploadDir, 0755)

	sourcePath := filepath.Join(uploadDir, taskID+ext)
	if err := c.SaveUploadedFile(file, sourcePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存文件失败: " + err.Error()})
		return
	}

	task := &models.TranslateTask{
		ID:         taskID,
		SessionID:  sessionID,
		SourceFile: file.Filename,
		Status:     models.TaskPending,
		CreatedAt:  time.Now(),
	}
	h.Store.Put(task)

	c.JSON(http.StatusOK, gin.H{
		"taskId":  taskID,
		"message": "文件已上传",
	})
}

// TranslateHandler 对已上传的文件启动翻译任务
func (h *Handler) TranslateHandler(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的会话"})
		return
	}

	taskID := c.Param("taskId")
	task, err := h.Store.Get(taskID)
	if err != nil || task.SessionID != sessionID {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或无权访问"})
		return
	}
	if task.Status == models.TaskProcessing {
		c.JSON(http.StatusConflict, gin.H{"error": "任务已在处理中"})
		return
	}

	var req models.TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	target, ok := translator.ParseLanguage(req.TargetLanguage)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的目标语言: " + req.TargetLanguage})
		return
	}
	var source translator.Language
	if req.SourceLanguage != "" {
		source, ok = translator.ParseLanguage(req.SourceLanguage)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的源语言: " + req.SourceLanguage})
			return
		}
	}

	if req.LLMConfig.Provider == "" {
		req.LLMConfig.Provider = "openai"
	}
	if req.LLMConfig.APIURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "API URL 不能为空"})
		return
	}
	if req.LLMConfig.Model == "" {
		switch req.LLMConfig.Provider {
		case "claude":
			req.LLMConfig.Model = "claude-3-5-sonnet-20241022"
		case "gemini":
			req.LLMConfig.Model = "gemini-pro"
		case "deepseek":
			req.LLMConfig.Model = "deepseek-chat"
		case "ollama":
			req.LLMConfig.Model = "llama3"
		case "custom", "libretranslate":
			req.LLMConfig.Model = "default"
		default:
			req.LLMConfig.Model = "gpt-4o-mini"
		}
	}
	// 本地与自托管后端不需要 API Key
	needsAPIKey := req.LLMConfig.Provider != "ollama" &&
		req.LLMConfig.Provider != "libretranslate"
	if needsAPIKey && req.LLMConfig.APIKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "API Key 不能为空"})
		return
	}

	opts := translator.TaskOptions{
		SourceLang:      source,
		TargetLang:      target,
		TranslateText:   req.TranslateText == nil || *req.TranslateText,
		TranslateImages: req.TranslateImages,
		Engine:          req.Engine,
		UserPrompt:      req.UserPrompt,
	}

	h.Store.Update(taskID, func(t *models.TranslateTask) {
		t.SourceLanguage = string(source)
		t.TargetLanguage = string(target)
		t.Status = models.TaskPending
		t.Progress = 0
		t.Error = ""
	})

	go h.runTranslation(sessionID, taskID, opts, req)

	c.JSON(http.StatusOK, gin.H{
		"taskId":  taskID,
		"message": "翻译任务已启动",
	})
}

// runTranslation 后台执行翻译流水线
// 客户端断开不影响任务，完成结果留在任务存储中等待查询
func (h *Handler) runTranslation(sessionID, taskID string, opts translator.TaskOptions, req models.TranslateRequest) {
	fail := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		h.Store.Update(taskID, func(t *models.TranslateTask) {
			t.Status = models.TaskFailed
			t.Error = msg
		})
		h.broker.Finish(models.ProgressEvent{
			TaskID: taskID,
			Status: models.TaskFailed,
			Error:  msg,
		})
		log.Printf("[会话 %s][任务 %s] 翻译失败: %s", sessionID[:8], taskID, msg)
	}

	defer func() {
		if r := recover(); r != nil {
			fail("翻译过程出错: %v", r)
		}
	}()

	h.Store.Update(taskID, func(t *models.TranslateTask) {
		t.Status = models.TaskProcessing
	})
	log.Printf("[会话 %s][任务 %s] 开始处理翻译，提供商: %s, 模型: %s",
		sessionID[:8], taskID, req.LLMConfig.Provider, req.LLMConfig.Model)

	sourcePath := filepath.Join(h.userDir(sessionID, "uploads"), taskID+".pdf")
	pdfData, err := os.ReadFile(sourcePath)
	if err != nil {
		fail("读取源文件失败: %v", err)
		return
	}

	cacheDir := h.userDir(sessionID, "cache")
	os.MkdirAll(cacheDir, 0755)
	cache, _ := translator.NewCache(cacheDir)
	if req.ForceRetranslate {
		log.Printf("[会话 %s][任务 %s] 强制重新翻译模式：将忽略现有缓存", sessionID[:8], taskID)
		cache.Disable()
	}

	client, err := translator.NewTranslatorClient(translator.ProviderConfig{
		Type:        translator.ProviderType(req.LLMConfig.Provider),
		APIKey:      req.LLMConfig.APIKey,
		APIURL:      req.LLMConfig.APIURL,
		Model:       req.LLMConfig.Model,
		Temperature: req.LLMConfig.Temperature,
		MaxTokens:   req.LLMConfig.MaxTokens,
		Extra:       req.LLMConfig.Extra,
	}, cache)
	if err != nil {
		fail("创建翻译客户端失败: %v", err)
		return
	}

	// 配置错误在处理任何一页之前暴露
	var images *translator.ImageTranslator
	fontPath := translator.FindCJKFont(h.Cfg.CJKFontPath)
	metrics := translator.NewFontMetrics(fontPath)
	if opts.TranslateImages {
		ocr, err := translator.NewOCRAdapter(h.Cfg.TesseractBinary, h.Cfg.OCRConfidence)
		if err != nil {
			fail("图片翻译不可用: %v", err)
			return
		}
		images = translator.NewImageTranslator(ocr, client, metrics.Font())
	}

	comp := translator.NewCompositor(fontPath)
	rec := translator.NewReconstructor(client, images, translator.NewLayoutFitter(metrics))
	orch := translator.NewOrchestrator(rec, comp)
	orch.PreviewDPI = h.Cfg.PreviewDPI

	if opts.Engine == translator.EngineVision {
		if h.Cfg.GeminiAPIKey == "" {
			fail("视觉引擎未配置：缺少 GEMINI_API_KEY")
			return
		}
		orch.Vision = translator.NewGeminiVisionProvider(h.Cfg.GeminiAPIKey, h.Cfg.GeminiAPIURL, h.Cfg.GeminiModel)
	}

	outputDir := h.userDir(sessionID, "outputs")
	os.MkdirAll(outputDir, 0755)

	// 每页合成后生成预览图
	orch.OnPage = func(job *translator.PageJob) {
		png, err := comp.RenderPreview(job, h.Cfg.PreviewDPI)
		if err != nil {
			log.Printf("[任务 %s] 第 %d 页预览生成失败: %v", taskID, job.Number+1, err)
			return
		}
		previewPath := filepath.Join(outputDir, fmt.Sprintf("%s_p%d.png", taskID, job.Number+1))
		os.WriteFile(previewPath, png, 0644)
	}

	progress := func(page, total int, percent float64) {
		h.Store.Update(taskID, func(t *models.TranslateTask) {
			t.Progress = percent
			t.CurrentPage = page
			t.TotalPages = total
		})
		h.broker.Publish(models.ProgressEvent{
			TaskID:   taskID,
			Status:   models.TaskProcessing,
			Progress: percent,
			Page:     page,
			Total:    total,
			Message:  fmt.Sprintf("已处理 %d/%d 页", page, total),
		})
	}

	result, err := orch.Run(pdfData, opts, progress)
	if err != nil {
		fail("翻译失败: %v", err)
		return
	}

	outputPath := filepath.Join(outputDir, taskID+".pdf")
	if err := os.WriteFile(outputPath, result.Output, 0644); err != nil {
		fail("写入输出文件失败: %v", err)
		return
	}

	h.Store.Update(taskID, func(t *models.TranslateTask) {
		t.Status = models.TaskCompleted
		t.Progress = 100
		t.TotalPages = result.TotalPages
		t.DegradedUnits = result.DegradedUnits
		t.CompletedAt = time.Now()
		t.OutputPath = outputPath
	})
	h.broker.Finish(models.ProgressEvent{
		TaskID:   taskID,
		Status:   models.TaskCompleted,
		Progress: 100,
		Page:     result.TotalPages,
		Total:    result.TotalPages,
	})
	log.Printf("[会话 %s][任务 %s] 翻译完成: %s（降级单元 %d 个）",
		sessionID[:8], taskID, outputPath, result.DegradedUnits)
}

// GetStatusHandler 获取任务状态
func (h *Handler) GetStatusHandler(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的会话"})
		return
	}

	task, err := h.Store.Get(c.Param("taskId"))
	if err != nil || task.SessionID != sessionID {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或无权访问"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// EventsHandler SSE 推送任务进度
func (h *Handler) EventsHandler(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的会话"})
		return
	}

	taskID := c.Param("taskId")
	task, err := h.Store.Get(taskID)
	if err != nil || task.SessionID != sessionID {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或无权访问"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// 任务已结束：推一条快照就收工
	if task.Status == models.TaskCompleted || task.Status == models.TaskFailed {
		c.SSEvent("progress", models.ProgressEvent{
			TaskID:   taskID,
			Status:   task.Status,
			Progress: task.Progress,
			Page:     task.CurrentPage,
			Total:    task.TotalPages,
			Error:    task.Error,
		})
		c.Writer.Flush()
		return
	}

	events, cancel := h.broker.Subscribe(taskID)
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("progress", event)
			return event.Status == models.TaskProcessing
		case <-c.Request.Context().Done():
			// 客户端断开，任务在后台继续
			return false
		}
	})
}

// DownloadHandler 下载翻译后的文件
func (h *Handler) DownloadHandler(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的会话"})
		return
	}

	task, err := h.Store.Get(c.Param("taskId"))
	if err != nil || task.SessionID != sessionID {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或无权访问"})
		return
	}
	if task.Status != models.TaskCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "任务未完成"})
		return
	}

	filename := "translated_" + task.SourceFile
	c.FileAttachment(task.OutputPath, filename)
}

// PreviewHandler 返回某一页的预览图（PNG）
func (h *Handler) PreviewHandler(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的会话"})
		return
	}

	taskID := c.Param("taskId")
	task, err := h.Store.Get(taskID)
	if err != nil || task.SessionID != sessionID {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或无权访问"})
		return
	}

	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的页码"})
		return
	}

	previewPath := filepath.Join(h.userDir(sessionID, "outputs"), fmt.Sprintf("%s_p%d.png", taskID, page))
	if _, err := os.Stat(previewPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "预览尚未生成"})
		return
	}
	c.File(previewPath)
}

// GetTasksHandler 获取当前用户的所有任务
func (h *Handler) GetTasksHandler(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的会话"})
		return
	}

	taskList := h.Store.List(sessionID)

	c.JSON(http.StatusOK, gin.H{
		"tasks": taskList,
		"total": len(taskList),
	})
}

// CleanupLoop 定期清理过期任务及其文件
func (h *Handler) CleanupLoop(retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		h.cleanupExpired(retention)
	}
}

func (h *Handler) cleanupExpired(retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	usersDir := filepath.Join(h.Cfg.DataDir, "users")
	sessions, err := os.ReadDir(usersDir)
	if err != nil {
		return
	}

	for _, entry := range sessions {
		if !entry.IsDir() {
			continue
		}
		for _, task := range h.Store.List(entry.Name()) {
			if task.CreatedAt.After(cutoff) {
				continue
			}
			if task.Status == models.TaskProcessing || task.Status == models.TaskPending {
				continue
			}
			h.removeTaskFiles(task)
			h.Store.Delete(task.ID)
			h.broker.Drop(task.ID)
			log.Printf("已清理过期任务 %s", task.ID)
		}
	}
}

func (h *Handler) removeTaskFiles(task *models.TranslateTask) {
	sessionID := task.SessionID
	os.Remove(filepath.Join(h.userDir(sessionID, "uploads"), task.ID+".pdf"))
	if task.OutputPath != "" {
		os.Remove(task.OutputPath)
	}
	for p := 1; p <= task.TotalPages; p++ {
		os.Remove(filepath.Join(h.userDir(sessionID, "outputs"), fmt.Sprintf("%s_p%d.png", task.ID, p)))
	}
}
