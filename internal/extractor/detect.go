package extractor

import (
	"bytes"
	"unicode/utf8"

	"candidate-engine-go/internal/types"
)

var (
	pdfMagic  = []byte("%PDF")
	zipMagic  = []byte("PK\x03\x04")
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

	// DOCX是ZIP容器，以中心目录里的类型描述文件区分于普通ZIP
	docxContentTypes = []byte("[Content_Types].xml")

	htmlMarkers = [][]byte{
		[]byte("<html"),
		[]byte("<HTML"),
		[]byte("<!doctype html"),
		[]byte("<!DOCTYPE html"),
		[]byte("<!DOCTYPE HTML"),
	}
)

// DetectFormat 通过魔数探测文档格式，不信任文件扩展名
// HTML内容通常意味着下载到的是登录页或错误页而非简历本体
func DetectFormat(data []byte) types.DocumentFormat {
	if len(data) < 4 {
		return types.FormatUnknown
	}

	// 允许个别生成器在%PDF前写入少量垃圾字节
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.HasPrefix(data, pdfMagic) || bytes.Contains(head, pdfMagic) {
		return types.FormatPDF
	}

	if bytes.HasPrefix(data, zipMagic) {
		if bytes.Contains(data, docxContentTypes) {
			return types.FormatDOCX
		}
		return types.FormatUnknown
	}

	if bytes.HasPrefix(data, jpegMagic) {
		return types.FormatJPEG
	}

	if bytes.HasPrefix(data, pngMagic) {
		return types.FormatPNG
	}

	trimmed := bytes.TrimLeft(head, " \t\r\n\xef\xbb\xbf")
	for _, marker := range htmlMarkers {
		if bytes.HasPrefix(trimmed, marker) || bytes.Contains(head, marker) {
			return types.FormatHTML
		}
	}

	if isPlainText(head) {
		return types.FormatText
	}

	return types.FormatUnknown
}

// isPlainText 内容是合法UTF-8且几乎不含控制字符时按纯文本处理
func isPlainText(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	var control int
	for _, r := range string(data) {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			control++
		}
	}
	return control*100 < len(data)
}
