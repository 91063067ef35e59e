package domain

import (
	"math/rand"
	"slices"
	"strings"
	"testing"
)

func TestUpdateSessionTagScenario(t *testing.T) {
	session := NewUpdateSession(Document{ID: "d1", Title: "Budget", Tags: []string{"finance", "2024"}})

	session.RemoveExistingTag("2024")
	if err := session.AddNewTag("urgent"); err != nil {
		t.Fatalf("AddNewTag() error = %v", err)
	}
	existing, added := session.SubmissionTagSets()
	if !slices.Equal(existing, []string{"finance"}) || !slices.Equal(added, []string{"urgent"}) {
		t.Fatalf("unexpected tag sets %v / %v", existing, added)
	}
	if !session.HasChanges() {
		t.Fatalf("expected changes")
	}

	// Restoring the baseline set cancels the change.
	session.RemoveNewTag("urgent")
	if err := session.AddNewTag("2024"); err != nil {
		t.Fatalf("AddNewTag() error = %v", err)
	}
	if session.HasChanges() {
		t.Fatalf("expected no changes once the baseline set is restored")
	}
}

func TestAddNewTagDuplicate(t *testing.T) {
	session := NewUpdateSession(Document{ID: "d1", Title: "Budget", Tags: []string{"finance"}})

	err := session.AddNewTag(" finance ")
	if !IsKind(err, ErrDuplicateTag) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if IsKind(err, ErrValidation) {
		t.Fatalf("duplicate tag must not read as validation failure")
	}
	if len(session.NewTags()) != 0 {
		t.Fatalf("session must be unchanged, got %v", session.NewTags())
	}
	if err := session.AddNewTag("   "); err != nil {
		t.Fatalf("blank tag must be a no-op, got %v", err)
	}
}

func TestCreateSessionAlwaysHasChanges(t *testing.T) {
	session := NewCreateSession()
	if !session.HasChanges() {
		t.Fatalf("create session must report changes")
	}
	existing, added := session.SubmissionTagSets()
	if existing == nil || len(existing) != 0 || added == nil || len(added) != 0 {
		t.Fatalf("expected empty non-nil tag sets, got %#v / %#v", existing, added)
	}
}

func TestStageFileFillsTitleOnCreate(t *testing.T) {
	session := NewCreateSession()
	session.StageFile(FileUpload{FileName: "Q3 report.docx"})
	if session.Title != "Q3 report" {
		t.Fatalf("expected title from file name, got %q", session.Title)
	}

	session = NewCreateSession()
	session.Title = "Kept"
	session.StageFile(FileUpload{FileName: "other.pdf"})
	if session.Title != "Kept" {
		t.Fatalf("title must not be overwritten, got %q", session.Title)
	}

	update := NewUpdateSession(Document{ID: "d1", Title: "Budget"})
	update.StageFile(FileUpload{FileName: "budget-v2.pdf"})
	if update.Title != "Budget" {
		t.Fatalf("update title must not change, got %q", update.Title)
	}
	if !update.HasChanges() {
		t.Fatalf("a staged file is a change")
	}
}

func TestValidate(t *testing.T) {
	session := NewCreateSession()
	session.Title = "Policy"
	err := session.Validate()
	var fieldErr *FieldError
	if !IsKind(err, ErrValidation) || !errorsAs(err, &fieldErr) || fieldErr.Field != "file" {
		t.Fatalf("expected file validation error, got %v", err)
	}

	update := NewUpdateSession(Document{ID: "d1", Title: "Budget"})
	update.Title = "  "
	if err := update.Validate(); !IsKind(err, ErrValidation) {
		t.Fatalf("expected title validation error, got %v", err)
	}
}

func TestApplyAutomaticTag(t *testing.T) {
	update := NewUpdateSession(Document{ID: "d1", Title: "Mail", Tags: []string{"inbox"}})
	if err := update.AddNewTag("Email"); err != nil {
		t.Fatalf("AddNewTag() error = %v", err)
	}
	if !update.ApplyAutomaticTag("Email") {
		t.Fatalf("expected session change")
	}
	if !slices.Equal(update.ExistingTags(), []string{"inbox", "Email"}) || len(update.NewTags()) != 0 {
		t.Fatalf("label must move to existing tags, got %v / %v", update.ExistingTags(), update.NewTags())
	}
	if update.ApplyAutomaticTag("Email") {
		t.Fatalf("second apply must be a no-op")
	}

	create := NewCreateSession()
	if !create.ApplyAutomaticTag("Email") || !slices.Equal(create.NewTags(), []string{"Email"}) {
		t.Fatalf("create session must collect the label in new tags, got %v", create.NewTags())
	}
}

func TestHasChangesMatchesSymmetricDifference(t *testing.T) {
	pool := []string{"a", "b", "c", "d", "e"}
	rng := rand.New(rand.NewSource(42))

	for i := range 500 {
		var baseline []string
		for _, tag := range pool {
			if rng.Intn(2) == 0 {
				baseline = append(baseline, tag)
			}
		}
		session := NewUpdateSession(Document{ID: "d", Title: "T", Tags: baseline})
		for range rng.Intn(6) {
			tag := pool[rng.Intn(len(pool))]
			switch rng.Intn(3) {
			case 0:
				session.RemoveExistingTag(tag)
			case 1:
				_ = session.AddNewTag(tag)
			default:
				session.RemoveNewTag(tag)
			}
		}

		existing, added := session.SubmissionTagSets()
		for _, tag := range added {
			if slices.Contains(existing, tag) {
				t.Fatalf("iteration %d: %q in both sets", i, tag)
			}
		}
		working := append(slices.Clone(existing), added...)
		want := len(SymmetricDifference(working, baseline)) > 0
		if got := session.HasChanges(); got != want {
			t.Fatalf("iteration %d: HasChanges()=%v, want %v (baseline=%v working=%v)", i, got, want, baseline, working)
		}
	}
}

func TestSymmetricDifference(t *testing.T) {
	got := SymmetricDifference([]string{"b", "a", "x"}, []string{"x", "c"})
	if strings.Join(got, ",") != "a,b,c" {
		t.Fatalf("unexpected difference %v", got)
	}
	if len(SymmetricDifference(nil, nil)) != 0 {
		t.Fatalf("expected empty difference")
	}
}
