package services

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	w.Write([]byte(documentXML))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractor_TXT(t *testing.T) {
	got, err := NewExtractor().Extract("memo.TXT", []byte("  Acme Corp\r\n\r\n\r\n  Seed round  \n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Acme Corp\n\nSeed round" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestExtractor_EmptyTXT(t *testing.T) {
	if _, err := NewExtractor().Extract("memo.txt", []byte(" \n ")); err == nil {
		t.Fatal("expected error for empty text file")
	}
}

func TestExtractor_DOCX(t *testing.T) {
	xml := `<w:document><w:body><w:p><w:r><w:t>Acme &amp; Co</w:t></w:r></w:p><w:p><w:r><w:t>Risks</w:t><w:br/><w:t>Churn</w:t></w:r></w:p></w:body></w:document>`

	got, err := NewExtractor().Extract("memo.docx", buildDOCX(t, xml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Acme & Co\nRisks\nChurn" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestExtractor_DOCXWithoutDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.Create("word/styles.xml")
	zw.Close()

	_, err := NewExtractor().Extract("memo.docx", buf.Bytes())
	if err == nil || !strings.Contains(err.Error(), "document.xml not found") {
		t.Fatalf("expected missing document error, got %v", err)
	}
}

func TestExtractor_Unsupported(t *testing.T) {
	for _, name := range []string{"memo.doc", "memo.png", "memo"} {
		if _, err := NewExtractor().Extract(name, []byte("x")); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("%s: expected ErrUnsupportedType, got %v", name, err)
		}
	}
}

func TestExtractor_InvalidPDF(t *testing.T) {
	if _, err := NewExtractor().Extract("memo.pdf", []byte("not a pdf")); err == nil {
		t.Fatal("expected error for invalid pdf")
	}
}

func TestWithAttachmentContext(t *testing.T) {
	if got := withAttachmentContext("hello", nil); got != "hello" {
		t.Errorf("expected content unchanged without attachments, got %q", got)
	}

	got := withAttachmentContext("Summarize", []AttachedDocument{
		{Attachment: attachment("memos/1/acme.pdf", "application/pdf"), Text: "Acme text"},
		{Attachment: attachment("memos/2/legacy.doc", "application/msword")},
		{Attachment: attachment("", "")},
	})

	for _, want := range []string{
		"Summarize\n\n---\nATTACHMENTS CONTEXT BEGIN\n",
		"<<<FILE memos/1/acme.pdf>>>:\nAcme text\n<<<END FILE memos/1/acme.pdf>>>",
		"[Non-text attachment] memos/2/legacy.doc (application/msword)",
		"[Non-text attachment] file_3",
		"ATTACHMENTS CONTEXT END",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected context to contain %q\n%s", want, got)
		}
	}
}
