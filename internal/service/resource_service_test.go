package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/albaranes/internal/apperr"
	"github.com/iliyamo/albaranes/internal/artifact"
	"github.com/iliyamo/albaranes/internal/model"
)

func strp(s string) *string { return &s }

func TestClientService_DuplicateEmailAndSharing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.member(t, "owner@example.com", "B1")
	mate := f.member(t, "mate@example.com", "B1")
	stranger := f.member(t, "stranger@example.com", "B2")

	c, err := f.clients.Create(ctx, owner, ClientInput{Name: "Ruiz", Email: "ruiz@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "B1", c.CompanyCIF)

	_, err = f.clients.Create(ctx, owner, ClientInput{Name: "Ruiz again", Email: "ruiz@example.com"})
	requireKind(t, err, apperr.KindConflict)

	// Clients without email never collide.
	_, err = f.clients.Create(ctx, owner, ClientInput{Name: "A"})
	require.NoError(t, err)
	_, err = f.clients.Create(ctx, owner, ClientInput{Name: "B"})
	require.NoError(t, err)

	got, err := f.clients.Get(ctx, mate, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ruiz", got.Name)

	_, err = f.clients.Get(ctx, stranger, c.ID)
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.clients.Archive(ctx, stranger, c.ID)
	requireKind(t, err, apperr.KindForbidden)
	_, err = f.clients.Update(ctx, stranger, c.ID, model.ClientPatch{Name: strp("x")})
	requireKind(t, err, apperr.KindForbidden)

	list, err := f.clients.List(ctx, stranger, false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestClientService_ArchiveLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.member(t, "u@example.com", "")
	c, err := f.clients.Create(ctx, u, ClientInput{Name: "Ruiz"})
	require.NoError(t, err)

	archived, err := f.clients.Archive(ctx, u, c.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	_, err = f.clients.Get(ctx, u, c.ID)
	requireKind(t, err, apperr.KindNotFound)

	active, err := f.clients.List(ctx, u, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	hidden, err := f.clients.List(ctx, u, true)
	require.NoError(t, err)
	require.Len(t, hidden, 1)

	back, err := f.clients.Unarchive(ctx, u, c.ID)
	require.NoError(t, err)
	assert.False(t, back.Archived)

	require.NoError(t, f.clients.Delete(ctx, u, c.ID))
	_, err = f.clients.Get(ctx, u, c.ID)
	requireKind(t, err, apperr.KindNotFound)
}

func TestClientService_UpdateEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.member(t, "u@example.com", "")
	a, err := f.clients.Create(ctx, u, ClientInput{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = f.clients.Create(ctx, u, ClientInput{Name: "B", Email: "b@example.com"})
	require.NoError(t, err)

	_, err = f.clients.Update(ctx, u, a.ID, model.ClientPatch{Email: strp("b@example.com")})
	requireKind(t, err, apperr.KindConflict)

	// Keeping its own email is not a duplicate.
	got, err := f.clients.Update(ctx, u, a.ID, model.ClientPatch{Email: strp("a@example.com"), Name: strp("A2")})
	require.NoError(t, err)
	assert.Equal(t, "A2", got.Name)
}

func TestProjectService_CreatorOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.member(t, "owner@example.com", "B1")
	mate := f.member(t, "mate@example.com", "B1")
	c, p, _ := f.workspace(t, owner)

	_, err := f.projects.Create(ctx, owner, ProjectInput{Name: "Other", ProjectCode: "OBRA-1", ClientID: c.ID})
	requireKind(t, err, apperr.KindConflict)
	_, err = f.projects.Create(ctx, owner, ProjectInput{Name: "Reforma", ProjectCode: "OBRA-2", ClientID: c.ID})
	requireKind(t, err, apperr.KindConflict)
	_, err = f.projects.Create(ctx, owner, ProjectInput{Name: "x", ProjectCode: "X", ClientID: 9999})
	requireKind(t, err, apperr.KindNotFound)

	// Projects are never shared through the company.
	_, err = f.projects.Get(ctx, mate, p.ID)
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.projects.Archive(ctx, mate, p.ID)
	requireKind(t, err, apperr.KindForbidden)

	got, err := f.projects.Update(ctx, owner, p.ID, model.ProjectPatch{Code: strp("INT-9")})
	require.NoError(t, err)
	assert.Equal(t, "INT-9", got.Code)

	// The note still references the project and its client.
	requireKind(t, f.projects.Delete(ctx, owner, p.ID), apperr.KindConflict)
	requireKind(t, f.clients.Delete(ctx, owner, c.ID), apperr.KindConflict)
}

func TestProjectService_UpdateKeepsCodesUnique(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.member(t, "owner@example.com", "")
	c, first, _ := f.workspace(t, owner)
	second, err := f.projects.Create(ctx, owner, ProjectInput{Name: "Ampliación", ProjectCode: "OBRA-2", ClientID: c.ID})
	require.NoError(t, err)

	_, err = f.projects.Update(ctx, owner, second.ID, model.ProjectPatch{ProjectCode: strp("OBRA-1")})
	requireKind(t, err, apperr.KindConflict)
	_, err = f.projects.Update(ctx, owner, second.ID, model.ProjectPatch{Name: strp(first.Name)})
	requireKind(t, err, apperr.KindConflict)

	// Rewriting a project's own code is not a collision.
	got, err := f.projects.Update(ctx, owner, second.ID, model.ProjectPatch{ProjectCode: strp("OBRA-2")})
	require.NoError(t, err)
	assert.Equal(t, "OBRA-2", got.ProjectCode)

	unchanged, err := f.projects.Get(ctx, owner, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ampliación", unchanged.Name)
}

func TestDeliveryNoteService_HiddenFromOtherCompanies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.member(t, "owner@example.com", "B1")
	stranger := f.member(t, "stranger@example.com", "B2")
	_, _, n := f.workspace(t, owner)
	_, _, deleted := f.workspace(t, f.member(t, "other@example.com", "B3"))
	require.NoError(t, f.db.DeliveryNotes().SoftDelete(ctx, deleted.ID, time.Now()))

	_, err := f.notes.Get(ctx, stranger, n.ID)
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.notes.Sign(ctx, stranger, n.ID)
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.notes.SignedArtifact(ctx, stranger, n.ID)
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.notes.Update(ctx, stranger, n.ID, model.DeliveryNotePatch{Description: strp("x")})
	requireKind(t, err, apperr.KindForbidden)
	requireKind(t, f.notes.SoftDelete(ctx, stranger, n.ID), apperr.KindForbidden)
	requireKind(t, f.notes.Delete(ctx, stranger, n.ID), apperr.KindForbidden)
	_, err = f.notes.Restore(ctx, stranger, deleted.ID)
	requireKind(t, err, apperr.KindForbidden)

	for _, view := range []NoteView{ViewActive, ViewDeleted, ViewSigned, ViewUnsigned} {
		list, err := f.notes.List(ctx, stranger, view)
		require.NoError(t, err)
		assert.Empty(t, list, "view %v", view)
	}

	// Nothing the stranger tried changed the note.
	got, err := f.notes.Get(ctx, owner, n.ID)
	require.NoError(t, err)
	assert.False(t, got.Signed)
	assert.Equal(t, "Alicatado", got.Description)
}

func TestDeliveryNoteService_CreateChecksReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.member(t, "owner@example.com", "B1")
	mate := f.member(t, "mate@example.com", "B1")
	c, p, _ := f.workspace(t, owner)
	hours := 2.0
	in := NoteInput{ClientID: c.ID, ProjectID: p.ID, Format: model.FormatHours, Hours: &hours,
		Description: "Pintura", WorkDate: time.Now()}

	// The colleague sees the client but the project is not theirs.
	_, err := f.notes.Create(ctx, mate, in)
	requireKind(t, err, apperr.KindNotFound)

	bad := in
	bad.Material = strp("cable")
	_, err = f.notes.Create(ctx, owner, bad)
	requireKind(t, err, apperr.KindValidation)

	other, err := f.clients.Create(ctx, owner, ClientInput{Name: "Other"})
	require.NoError(t, err)
	wrongClient := in
	wrongClient.ClientID = other.ID
	_, err = f.notes.Create(ctx, owner, wrongClient)
	requireKind(t, err, apperr.KindNotFound)

	n, err := f.notes.Create(ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, "B1", n.CompanyCIF)
	assert.False(t, n.Signed)
}

func TestDeliveryNoteService_SignFreezesNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.member(t, "owner@example.com", "B1")
	mate := f.member(t, "mate@example.com", "B1")
	_, _, n := f.workspace(t, owner)

	_, err := f.notes.SignedArtifact(ctx, owner, n.ID)
	requireKind(t, err, apperr.KindNotFound)

	// A colleague in the same company may sign.
	signed, err := f.notes.Sign(ctx, mate, n.ID)
	require.NoError(t, err)
	assert.True(t, signed.Signed)
	assert.NotEmpty(t, signed.PDFCID)
	assert.Equal(t, "https://gw.test/ipfs/mock-"+signed.PDFCID, signed.PDFURL)

	data, ok := f.store.Bytes(artifact.NoteName(n.ID))
	require.True(t, ok)
	assert.Equal(t, artifact.ContentID(data), signed.PDFCID)

	again, err := f.notes.Sign(ctx, owner, n.ID)
	require.NoError(t, err)
	assert.Equal(t, signed.PDFCID, again.PDFCID)
	assert.Equal(t, 1, f.store.calls)

	ref, err := f.notes.SignedArtifact(ctx, owner, n.ID)
	require.NoError(t, err)
	assert.Equal(t, signed.PDFURL, ref.Locator)

	_, err = f.notes.Update(ctx, owner, n.ID, model.DeliveryNotePatch{Description: strp("edit")})
	requireKind(t, err, apperr.KindConflict)
	requireKind(t, f.notes.Delete(ctx, owner, n.ID), apperr.KindConflict)

	// Soft delete and restore keep the signature.
	require.NoError(t, f.notes.SoftDelete(ctx, owner, n.ID))
	_, err = f.notes.Get(ctx, owner, n.ID)
	requireKind(t, err, apperr.KindNotFound)
	restored, err := f.notes.Restore(ctx, owner, n.ID)
	require.NoError(t, err)
	assert.True(t, restored.Signed)
}

func TestDeliveryNoteService_SignRetriesUploadOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.member(t, "u@example.com", "")
	_, _, n := f.workspace(t, u)

	f.store.failures = 1
	signed, err := f.notes.Sign(ctx, u, n.ID)
	require.NoError(t, err)
	assert.True(t, signed.Signed)
	assert.Equal(t, 2, f.store.calls)
}

func TestDeliveryNoteService_SignFailureLeavesNoteUnsigned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.member(t, "u@example.com", "")
	_, _, n := f.workspace(t, u)

	f.store.failures = 2
	_, err := f.notes.Sign(ctx, u, n.ID)
	requireKind(t, err, apperr.KindArtifactGeneration)
	assert.Equal(t, 2, f.store.calls)

	got, err := f.notes.Get(ctx, u, n.ID)
	require.NoError(t, err)
	assert.False(t, got.Signed)
	assert.Empty(t, got.PDFURL)

	f.notes.renderer = stubRenderer{err: assert.AnError}
	_, err = f.notes.Sign(ctx, u, n.ID)
	requireKind(t, err, apperr.KindArtifactGeneration)
}

func TestDeliveryNoteService_SignDeletedNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.member(t, "u@example.com", "")
	_, _, n := f.workspace(t, u)

	require.NoError(t, f.notes.SoftDelete(ctx, u, n.ID))
	_, err := f.notes.Sign(ctx, u, n.ID)
	requireKind(t, err, apperr.KindNotFound)
	requireKind(t, f.notes.SoftDelete(ctx, u, n.ID), apperr.KindNotFound)
}

func TestDeliveryNoteService_SignedArtifactFallsBackToRecordedRef(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.member(t, "u@example.com", "")
	_, _, n := f.workspace(t, u)
	require.NoError(t, f.db.DeliveryNotes().MarkSigned(ctx, n.ID, "https://gw.test/ipfs/abc", "abc"))

	ref, err := f.notes.SignedArtifact(ctx, u, n.ID)
	require.NoError(t, err)
	assert.Equal(t, artifact.Ref{Locator: "https://gw.test/ipfs/abc", ContentID: "abc"}, ref)
}

func TestDeliveryNoteService_UpdateAndViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.member(t, "u@example.com", "")
	c, p, n := f.workspace(t, u)

	_, err := f.notes.Update(ctx, u, n.ID, model.DeliveryNotePatch{Material: strp("cable")})
	requireKind(t, err, apperr.KindValidation)

	got, err := f.notes.Update(ctx, u, n.ID, model.DeliveryNotePatch{
		Format: strp(model.FormatMaterial), Material: strp("cable"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.FormatMaterial, got.Format)
	assert.Nil(t, got.Hours)

	hours := 1.0
	second, err := f.notes.Create(ctx, u, NoteInput{ClientID: c.ID, ProjectID: p.ID, Format: model.FormatHours,
		Hours: &hours, Description: "x", WorkDate: time.Now()})
	require.NoError(t, err)
	_, err = f.notes.Sign(ctx, u, second.ID)
	require.NoError(t, err)

	count := func(view NoteView) int {
		list, err := f.notes.List(ctx, u, view)
		require.NoError(t, err)
		return len(list)
	}
	assert.Equal(t, 2, count(ViewActive))
	assert.Equal(t, 1, count(ViewSigned))
	assert.Equal(t, 1, count(ViewUnsigned))
	assert.Equal(t, 0, count(ViewDeleted))

	active, err := f.notes.List(ctx, u, ViewActive)
	require.NoError(t, err)
	for _, d := range active {
		assert.Equal(t, "Ruiz SL", d.Client.Name)
		assert.Equal(t, "OBRA-1", d.Project.ProjectCode)
		assert.Equal(t, u.ID, d.Issuer.ID)
	}

	require.NoError(t, f.notes.Delete(ctx, u, n.ID))
	assert.Equal(t, 1, count(ViewActive))

	detail, err := f.notes.Get(ctx, u, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ruiz SL", detail.Client.Name)
	assert.Equal(t, u.ID, detail.Issuer.ID)
}
