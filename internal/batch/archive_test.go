package batch

import (
	"reflect"
	"testing"
	"time"

	"github.com/yourusername/taakinstructies/internal/pdf"
)

func TestArchiveEntries(t *testing.T) {
	artifacts := []Artifact{
		{Row: 1, Name: "A", Filename: EntryName(1, "A"), Document: pdf.Document{Data: []byte("a"), Pages: 1}},
		{Row: 2, Name: "Team/Alpha*1", Filename: EntryName(2, "Team/Alpha*1"), Document: pdf.Document{Data: []byte("b"), Pages: 1}},
		{Row: 3, Name: "???", Filename: EntryName(3, "???"), Document: pdf.Document{Data: []byte("c"), Pages: 0}},
	}
	modified := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	data, err := Archive(artifacts, []byte("bundle"), modified)
	if err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}

	names, contents := readZip(t, data)
	want := []string{"1 A.pdf", "2 Team Alpha 1.pdf", "3 file.pdf", "bundled.pdf"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	if string(contents["2 Team Alpha 1.pdf"]) != "b" || string(contents["bundled.pdf"]) != "bundle" {
		t.Fatalf("unexpected contents: %#v", contents)
	}
}

func TestArchiveWithoutArtifacts(t *testing.T) {
	data, err := Archive(nil, []byte("bundle"), time.Time{})
	if err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}
	names, _ := readZip(t, data)
	if !reflect.DeepEqual(names, []string{"bundled.pdf"}) {
		t.Fatalf("entries = %v", names)
	}
}
