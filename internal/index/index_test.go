package index

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/starford/headless/internal/apperr"
	"github.com/starford/headless/internal/content"
	"github.com/starford/headless/internal/parser"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "headless-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name(), WithDefaultLangcode("en"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustIndex(t *testing.T, db *DB, path, data string) []string {
	t.Helper()
	tags, err := IndexDocument(db, path, []byte(data))
	if err != nil {
		t.Fatalf("IndexDocument(%s): %v", path, err)
	}
	return tags
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

const articleDoc = `---
type: node
bundle: article
id: "1"
path: /news/first
cache_tags: [campaign]
references:
  field_tags: [taxonomy_term/5]
---
# First

Body mentions [[node/2]].
`

const termDoc = `---
type: taxonomy_term
bundle: tags
id: "5"
uuid: 11111111-2222-3333-4444-555555555555
---
# Go
`

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"documents", "objects", "refs", "displays", "redirects"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertContent_TagsAndChecksum(t *testing.T) {
	db := testDB(t)
	tags := mustIndex(t, db, "news/first.md", articleDoc)

	for _, want := range []string{"node:1", "node_list", "campaign", TagConfig} {
		if !hasTag(tags, want) {
			t.Errorf("tags %v missing %q", tags, want)
		}
	}
	cs, err := db.GetChecksum("news/first.md")
	if err != nil || cs == "" {
		t.Fatalf("GetChecksum = %q, %v", cs, err)
	}

	// Same identity and alias: routing is unchanged.
	tags = mustIndex(t, db, "news/first.md", strings.Replace(articleDoc, "# First", "# First, edited", 1))
	if hasTag(tags, TagConfig) {
		t.Errorf("body edit should not invalidate %s: %v", TagConfig, tags)
	}

	// Alias change invalidates routing.
	tags = mustIndex(t, db, "news/first.md", strings.Replace(articleDoc, "/news/first", "/news/renamed", 1))
	if !hasTag(tags, TagConfig) {
		t.Errorf("alias change should invalidate %s: %v", TagConfig, tags)
	}
}

func TestLoadObject(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustIndex(t, db, "news/first.md", articleDoc)
	mustIndex(t, db, "tags/go.md", termDoc)

	obj, err := db.LoadObject(ctx, "node", "1", "")
	if err != nil {
		t.Fatalf("LoadObject: %v", err)
	}
	if obj.Variant != "article" || obj.Alias != "/news/first" || !obj.Published {
		t.Errorf("object = %+v", obj)
	}
	if obj.UUID != parser.ObjectUUID("node", "1") {
		t.Errorf("uuid = %q", obj.UUID)
	}
	ref := obj.Field("field_tags").Refs[0]
	if ref.UUID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("ref uuid = %q", ref.UUID)
	}
	// Unindexed targets keep an empty uuid.
	if links := obj.Field(parser.FieldBodyLinks); links == nil || links.Refs[0].UUID != "" {
		t.Errorf("body_links = %+v", links)
	}

	if _, err := db.LoadObject(ctx, "node", "404", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing object err = %v, want ErrNotFound", err)
	}
}

func TestLoadObject_Translations(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustIndex(t, db, "about.md", "---\nid: about\ntype: node\n---\n# About\n")
	mustIndex(t, db, "about.nl.md", "---\nid: about\ntype: node\nlangcode: nl\n---\n# Over ons\n")

	def, err := db.LoadObject(ctx, "node", "about", "")
	if err != nil || def.Langcode != "en" {
		t.Fatalf("default = %+v, %v", def, err)
	}
	nl, err := db.LoadObject(ctx, "node", "about", "nl")
	if err != nil || nl.Langcode != "nl" || nl.UUID != def.UUID {
		t.Fatalf("nl = %+v, %v", nl, err)
	}
	if _, err := db.LoadObject(ctx, "node", "about", "de"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("de err = %v", err)
	}
}

func TestObjectByAlias(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, "news/first.md", articleDoc)
	obj, err := db.ObjectByAlias(context.Background(), "/news/first", "en")
	if err != nil {
		t.Fatalf("ObjectByAlias: %v", err)
	}
	if obj.ID != "1" {
		t.Errorf("id = %q", obj.ID)
	}
	if _, err := db.ObjectByAlias(context.Background(), "/nope", "en"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestQueryObjects(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3"} {
		mustIndex(t, db, "a"+id+".md", "---\ntype: node\nbundle: article\nid: \""+id+"\"\nreferences:\n  field_tags: [taxonomy_term/5]\nfields:\n  color: red\n---\n# A"+id+"\n")
	}
	mustIndex(t, db, "draft.md", "---\ntype: node\nbundle: article\nid: \"4\"\npublished: false\n---\n# Draft\n")
	mustIndex(t, db, "page.md", "---\ntype: node\nbundle: page\nid: \"5\"\n---\n# Page\n")

	got, err := db.QueryObjects(ctx, content.CollectionQuery{Category: "node", Variant: "article", Order: "desc", Limit: 2})
	if err != nil {
		t.Fatalf("QueryObjects: %v", err)
	}
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Fatalf("page = %v", ids(got))
	}

	got, _ = db.QueryObjects(ctx, content.CollectionQuery{Category: "node", Variant: "article", Limit: 2, Offset: 2})
	if len(got) != 1 || got[0].ID != "3" {
		t.Errorf("second page = %v", ids(got))
	}

	got, _ = db.QueryObjects(ctx, content.CollectionQuery{Category: "node",
		Filters: []content.CollectionFilter{{Field: "field_tags", Value: "5"}}})
	if len(got) != 3 {
		t.Errorf("ref filter = %v", ids(got))
	}
	got, _ = db.QueryObjects(ctx, content.CollectionQuery{Category: "node",
		Filters: []content.CollectionFilter{{Field: "color", Value: "red"}}})
	if len(got) != 3 {
		t.Errorf("value filter = %v", ids(got))
	}

	if _, err := db.QueryObjects(ctx, content.CollectionQuery{Category: "node", Sort: "body; DROP"}); err == nil {
		t.Error("expected unsupported sort error")
	}
}

func ids(objs []*content.Object) []string {
	var out []string
	for _, o := range objs {
		out = append(out, o.ID)
	}
	return out
}

const siteConfig = `
displays:
  - type: node
    bundle: article
    view_mode: teaser
    hidden: [body]
    components:
      field_tags: {type: entity_reference_entity_view, view_mode: chip}
redirects:
  - source: /old
    target: /news/first
  - source: /oud
    target: /nieuws
    langcode: nl
    status: 302
views:
  - id: news
    path: /news
    displays:
      default:
        query: {category: node, variant: article}
`

func TestUpsertConfig(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tags := mustIndex(t, db, "site.yaml", siteConfig)
	if !hasTag(tags, TagConfig) || !hasTag(tags, "view:news") {
		t.Errorf("tags = %v", tags)
	}

	d, err := db.Display(ctx, "node", "article", "teaser")
	if err != nil || d == nil {
		t.Fatalf("Display = %v, %v", d, err)
	}
	if !d.IsHidden("body") || d.ReferenceViewMode("field_tags") != "chip" {
		t.Errorf("display = %+v", d)
	}
	if d, _ := db.Display(ctx, "node", "article", "full"); d != nil {
		t.Errorf("unconfigured display = %+v", d)
	}

	r, err := db.FindRedirect(ctx, "old", "nl")
	if err != nil || r == nil || r.Target != "/news/first" || r.Status != 301 {
		t.Errorf("neutral redirect = %+v, %v", r, err)
	}
	r, _ = db.FindRedirect(ctx, "oud", "nl")
	if r == nil || r.Status != 302 {
		t.Errorf("nl redirect = %+v", r)
	}
	if r, _ := db.FindRedirect(ctx, "oud", "en"); r != nil {
		t.Errorf("nl redirect leaked to en: %+v", r)
	}

	view, err := db.ObjectByAlias(ctx, "/news", "en")
	if err != nil {
		t.Fatalf("view alias: %v", err)
	}
	if !view.Config || view.Category != content.CollectionCategory || view.Settings["displays"] == nil {
		t.Errorf("view = %+v", view)
	}
}

func TestDeleteDocument_Cascades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustIndex(t, db, "news/first.md", articleDoc)
	mustIndex(t, db, "site.yaml", siteConfig)

	tags, err := db.DeleteDocument("news/first.md")
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if !hasTag(tags, "node:1") || !hasTag(tags, TagConfig) {
		t.Errorf("tags = %v", tags)
	}
	if _, err := db.LoadObject(ctx, "node", "1", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("object survived: %v", err)
	}
	if refs, _ := db.References(ctx, "node", "1"); len(refs) != 0 {
		t.Errorf("refs survived: %v", refs)
	}

	if _, err := db.DeleteDocument("site.yaml"); err != nil {
		t.Fatal(err)
	}
	if d, _ := db.Display(ctx, "node", "article", "teaser"); d != nil {
		t.Error("display survived")
	}

	tags, err = db.DeleteDocument("never-indexed.md")
	if err != nil || tags != nil {
		t.Errorf("unknown delete = %v, %v", tags, err)
	}
}

func TestReferencesAndBacklinks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustIndex(t, db, "news/first.md", articleDoc)

	out, err := db.References(ctx, "node", "1")
	if err != nil {
		t.Fatalf("References: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 references, got %v", out)
	}
	in, err := db.Backlinks(ctx, "taxonomy_term", "5")
	if err != nil || len(in) != 1 || in[0].Source.ID != "1" || in[0].Field != "field_tags" {
		t.Errorf("Backlinks = %v, %v", in, err)
	}
}

func TestListDocuments(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, "news/first.md", articleDoc)
	mustIndex(t, db, "tags/go.md", termDoc)
	mustIndex(t, db, "site.yaml", siteConfig)

	docs, total, err := db.ListDocuments("content", 1, 0)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if total != 2 || len(docs) != 1 || docs[0].Path != "news/first.md" {
		t.Errorf("docs = %v total = %d", docs, total)
	}
	_, total, _ = db.ListDocuments("", 10, 0)
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	mustIndex(t, db, "news/first.md", strings.Replace(articleDoc, "Body mentions", "Powerful search mentions", 1))

	results, err := db.Search("Powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "news/first.md" || results[0].ID != "1" {
		t.Errorf("results = %+v", results)
	}
}
