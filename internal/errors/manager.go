// Package errors keeps a journal of failed translation runs so they can be
// listed and retried. A later successful run for the same input removes
// its record.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// JournalFileName is the journal file inside the errors directory
const JournalFileName = "errors.json"

// ErrorStage 错误阶段枚举
type ErrorStage string

const (
	StageInspect   ErrorStage = "inspect"   // 检查输入 PDF
	StageConvert   ErrorStage = "convert"   // PDF 转 DOCX
	StageTranslate ErrorStage = "translate" // 翻译阶段
	StageRender    ErrorStage = "render"    // DOCX 转 PDF
	StageSetup     ErrorStage = "setup"     // 配置或参数错误
)

// ErrorRecord 错误记录
type ErrorRecord struct {
	ID         string     `json:"id"`          // absolute input path
	Input      string     `json:"input"`       // input as given on the command line
	TargetLang string     `json:"target_lang"` // 目标语言
	Stage      ErrorStage `json:"stage"`       // 出错阶段
	Code       string     `json:"code,omitempty"`
	ErrorMsg   string     `json:"error_msg"`
	Timestamp  time.Time  `json:"timestamp"` // first failure
	RetryCount int        `json:"retry_count"`
	LastRetry  time.Time  `json:"last_retry,omitempty"`
}

// ErrorManager 错误管理器
type ErrorManager struct {
	baseDir string
	mu      sync.RWMutex
	errors  map[string]*ErrorRecord // key: ID
}

// NewErrorManager opens the journal in baseDir, creating the directory if needed.
func NewErrorManager(baseDir string) (*ErrorManager, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("errors directory is required")
	}

	// 确保目录存在
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create errors directory: %w", err)
	}

	em := &ErrorManager{
		baseDir: baseDir,
		errors:  make(map[string]*ErrorRecord),
	}

	// 加载现有错误记录
	if err := em.load(); err != nil {
		return nil, err
	}

	return em, nil
}

// JournalID returns the key under which failures of input are recorded.
func JournalID(input string) string {
	if abs, err := filepath.Abs(input); err == nil {
		return abs
	}
	return filepath.Clean(input)
}

// RecordError 记录错误. A repeated failure for the same input keeps the
// original timestamp and counts as a retry.
func (em *ErrorManager) RecordError(input, targetLang string, stage ErrorStage, code, errorMsg string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	id := JournalID(input)
	now := time.Now()
	record := &ErrorRecord{
		ID:         id,
		Input:      input,
		TargetLang: targetLang,
		Stage:      stage,
		Code:       code,
		ErrorMsg:   errorMsg,
		Timestamp:  now,
	}

	if existing, ok := em.errors[id]; ok {
		record.Timestamp = existing.Timestamp
		record.RetryCount = existing.RetryCount + 1
		record.LastRetry = now
	}

	em.errors[id] = record

	return em.save()
}

// RemoveError 移除错误记录（翻译成功后）. Removing an unknown input is a no-op.
func (em *ErrorManager) RemoveError(input string) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	id := JournalID(input)
	if _, ok := em.errors[id]; !ok {
		return nil
	}
	delete(em.errors, id)
	return em.save()
}

// ListErrors lists all records, oldest first.
func (em *ErrorManager) ListErrors() []*ErrorRecord {
	em.mu.RLock()
	defer em.mu.RUnlock()

	return em.sortedCopies()
}

// GetError 获取特定输入的错误记录
func (em *ErrorManager) GetError(input string) (*ErrorRecord, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()

	record, ok := em.errors[JournalID(input)]
	if !ok {
		return nil, false
	}

	// 返回副本
	recordCopy := *record
	return &recordCopy, true
}

// ClearAll 清除所有错误记录
func (em *ErrorManager) ClearAll() error {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.errors = make(map[string]*ErrorRecord)
	return em.save()
}

// ExportInputs 导出所有失败的输入路径到文本文件，每行一个，用于批量重试
func (em *ErrorManager) ExportInputs(outputPath string) error {
	em.mu.RLock()
	defer em.mu.RUnlock()

	var content strings.Builder
	for _, record := range em.sortedCopies() {
		content.WriteString(record.ID)
		content.WriteByte('\n')
	}

	if err := os.WriteFile(outputPath, []byte(content.String()), 0644); err != nil {
		return fmt.Errorf("failed to write inputs file: %w", err)
	}

	return nil
}

// Path returns the journal file location.
func (em *ErrorManager) Path() string {
	return filepath.Join(em.baseDir, JournalFileName)
}

func (em *ErrorManager) sortedCopies() []*ErrorRecord {
	records := make([]*ErrorRecord, 0, len(em.errors))
	for _, record := range em.errors {
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].ID < records[j].ID
	})
	return records
}

// load 从文件加载错误记录
func (em *ErrorManager) load() error {
	data, err := os.ReadFile(em.Path())
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在是正常的
			return nil
		}
		return fmt.Errorf("failed to read errors file: %w", err)
	}

	var records []*ErrorRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal errors: %w", err)
	}

	for _, record := range records {
		em.errors[record.ID] = record
	}

	return nil
}

// save 保存错误记录到文件
func (em *ErrorManager) save() error {
	data, err := json.MarshalIndent(em.sortedCopies(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	if err := os.WriteFile(em.Path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write errors file: %w", err)
	}

	return nil
}

// GetStageDisplayName 获取阶段的显示名称
func GetStageDisplayName(stage ErrorStage) string {
	switch stage {
	case StageInspect:
		return "PDF inspection"
	case StageConvert:
		return "PDF to DOCX conversion"
	case StageTranslate:
		return "translation"
	case StageRender:
		return "PDF rendering"
	case StageSetup:
		return "setup"
	default:
		return string(stage)
	}
}
