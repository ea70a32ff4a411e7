package paper

import "testing"

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus(" Parsing "); !ok || status != StatusParsing {
		t.Fatalf("ParseStatus = %q, %v", status, ok)
	}
	if _, ok := ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("expected empty status to be rejected")
	}
}

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusUploaded, StatusParsing},
		{StatusParsing, StatusDownloading},
		{StatusParsing, StatusUploaded},
		{StatusDownloading, StatusUploaded},
		{StatusDownloading, StatusExtracted},
		{StatusExtracted, StatusAnalyzing},
		{StatusAnalyzing, StatusDone},
		{StatusUploaded, StatusError},
		{StatusParsing, StatusError},
		{StatusDownloading, StatusError},
		{StatusExtracted, StatusError},
		{StatusAnalyzing, StatusError},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to Status }{
		{StatusUploaded, StatusExtracted},
		{StatusExtracted, StatusParsing},
		{StatusError, StatusUploaded},
		{StatusError, StatusParsing},
		{StatusDone, StatusAnalyzing},
		{StatusDone, StatusError},
		{StatusAnalyzing, StatusUploaded},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestResumable(t *testing.T) {
	p := Paper{Status: StatusParsing, TaskID: "t-1"}
	if !p.Resumable() {
		t.Fatal("parsing with task id should be resumable")
	}
	p.TaskID = " "
	if p.Resumable() {
		t.Fatal("blank task id should not be resumable")
	}
	p = Paper{Status: StatusExtracted, TaskID: "t-1"}
	if p.Resumable() {
		t.Fatal("extracted should not be resumable")
	}
}

func TestMatchesKeySeparatorInsensitive(t *testing.T) {
	p := Paper{Key: `papers/20260101/a.pdf`}
	if !p.MatchesKey(`papers\20260101\a.pdf`) {
		t.Fatal("expected backslash query to match forward-slash key")
	}
	stored := Paper{Key: `papers\20260101\a.pdf`}
	if !stored.MatchesKey(`papers/20260101/a.pdf`) {
		t.Fatal("expected forward-slash query to match backslash key")
	}
	if p.MatchesKey("papers/20260101/b.pdf") {
		t.Fatal("different key must not match")
	}
}
