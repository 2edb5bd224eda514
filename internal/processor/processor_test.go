package processor

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/parser"
	"github.com/mfenderov/postseek/pkg/models"
)

func page(rows ...[3]string) string {
	var b strings.Builder
	b.WriteString("<html><body><table><tr><td>Subject</td><td>Forum</td></tr>")
	for _, r := range rows {
		fmt.Fprintf(&b, `<tr><td><a class="pp" id="p%s">%s</a></td><td class="forumrow"><a>`+"\n%s\n"+`</a></td></tr>`, r[0], r[1], r[2])
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func fragment(id, when, content string) string {
	return fmt.Sprintf(`<post><id>%s</id><first>1</first><last>2</last><when>%s</when><utime>u%s</utime>`+
		`<name>RogerRabbit</name><content><![CDATA[%s]]></content></post>`, id, when, id, content)
}

func seed(t *testing.T, stores *cache.Stores, pages map[int64]string, posts map[int64]string) {
	t.Helper()
	ctx := t.Context()
	if err := stores.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	for n, html := range pages {
		if err := stores.Pages.Set(ctx, cache.Pages.Key(n), html); err != nil {
			t.Fatal(err)
		}
	}
	for id, f := range posts {
		if err := stores.Posts.Set(ctx, cache.Posts.Key(id), f); err != nil {
			t.Fatal(err)
		}
	}
}

func TestProcessor_Run(t *testing.T) {
	stores := cache.NewMemStores()
	seed(t, stores,
		map[int64]string{
			0: page([3]string{"10", "Spore prints", "Mushroom Cultivation"}, [3]string{"11", "Agar", "Advanced Mycology"}),
			1: page([3]string{"12", "Missing raw", "Mushroom Cultivation"}),
		},
		map[int64]string{
			10: fragment("10", "1200000000", `<font color="red">hi</font><br /><br />there`),
			11: fragment("11", "not-a-number", "plain"),
		},
	)

	p := New(stores)
	result, err := p.Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Pages != 2 || result.Processed != 2 || result.Skipped != 1 || result.Failed != 0 {
		t.Errorf("result = %+v", result)
	}

	var post models.Post
	ok, err := stores.Processed.Get(t.Context(), cache.ProcessedPosts.Key(10), &post)
	if err != nil || !ok {
		t.Fatalf("processed post 10: ok=%v err=%v", ok, err)
	}
	want := models.Post{
		ID:      10,
		Title:   "Spore prints",
		Forum:   "Mushroom Cultivation",
		First:   1,
		Last:    2,
		When:    1200000000,
		Utime:   "u10",
		Content: "hi<br />there",
	}
	if post != want {
		t.Errorf("post = %+v, want %+v", post, want)
	}

	var degraded models.Post
	if _, err := stores.Processed.Get(t.Context(), cache.ProcessedPosts.Key(11), &degraded); err != nil {
		t.Fatal(err)
	}
	if degraded.When != 0 || degraded.Forum != "Advanced Mycology" {
		t.Errorf("degraded = %+v", degraded)
	}
}

func TestProcessor_Run_NormalizesOnce(t *testing.T) {
	stores := cache.NewMemStores()
	seed(t, stores,
		map[int64]string{0: page([3]string{"10", "T", "F"})},
		map[int64]string{10: fragment("10", "1", `<blockquote>Quote:<hr /><br />q<br /><hr /></blockquote>`)},
	)

	p := New(stores)
	for range 2 {
		if _, err := p.Run(t.Context()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	var post models.Post
	if _, err := stores.Processed.Get(t.Context(), cache.ProcessedPosts.Key(10), &post); err != nil {
		t.Fatal(err)
	}
	if post.Content != "<blockquote>Quote:<br />q</blockquote>" {
		t.Errorf("Content = %q", post.Content)
	}
}

func TestProcessor_Run_SkipsMisalignedPage(t *testing.T) {
	stores := cache.NewMemStores()
	misaligned := `<body>Subject Forum<a class="pp" id="p10">T</a><a class="pp" id="p11">U</a>` +
		`<div class="forumrow"><a>` + "\nF\n" + `</a></div></body>`
	seed(t, stores,
		map[int64]string{0: misaligned},
		map[int64]string{10: fragment("10", "1", "x"), 11: fragment("11", "1", "y")},
	)

	result, err := New(stores).Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("Processed = %d, want 0", result.Processed)
	}
	keys, _ := stores.Processed.Keys(t.Context())
	if len(keys) != 0 {
		t.Errorf("processed keys = %v, want none", keys)
	}
}

func TestProcessor_Run_IDMismatch(t *testing.T) {
	stores := cache.NewMemStores()
	seed(t, stores,
		map[int64]string{0: page([3]string{"10", "T", "F"})},
		map[int64]string{10: fragment("99", "1", "x")},
	)

	result, err := New(stores).Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Failed != 1 || len(result.Errors) != 1 {
		t.Fatalf("result = %+v", result)
	}

	_, err = New(stores).build(t.Context(), pageRef("10", "T"), "F")
	if !errors.Is(err, ErrIDMismatch) {
		t.Errorf("build() error = %v, want ErrIDMismatch", err)
	}
}

func TestProcessor_HealTitles(t *testing.T) {
	stores := cache.NewMemStores()
	seed(t, stores, map[int64]string{0: page([3]string{"10", "Recovered", "F"})}, nil)
	ctx := t.Context()

	untitled := models.Post{ID: 10, Forum: "F", Content: "c"}
	if err := stores.Processed.Set(ctx, cache.ProcessedPosts.Key(10), untitled); err != nil {
		t.Fatal(err)
	}
	embedded := models.EmbeddedPost{Post: untitled, Embedding: []float32{1, 0}}
	if err := stores.Embeddings.Set(ctx, cache.Embeddings.Key(10), embedded); err != nil {
		t.Fatal(err)
	}

	p := New(stores)
	healed, err := p.HealTitles(ctx)
	if err != nil {
		t.Fatalf("HealTitles() error = %v", err)
	}
	if healed != 2 {
		t.Errorf("healed = %d, want 2", healed)
	}

	var got models.EmbeddedPost
	if _, err := stores.Embeddings.Get(ctx, cache.Embeddings.Key(10), &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "Recovered" || len(got.Embedding) != 2 {
		t.Errorf("embedding = %+v", got)
	}

	again, err := p.HealTitles(ctx)
	if err != nil || again != 0 {
		t.Errorf("second HealTitles() = %d, %v; want 0, nil", again, err)
	}
}

func TestProcessor_View(t *testing.T) {
	stores := cache.NewMemStores()
	seed(t, stores, nil, map[int64]string{10: fragment("10", "1", `<font>raw</font>`)})

	p := New(stores)
	content, err := p.View(t.Context(), 10)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if content != "<font>raw</font>" {
		t.Errorf("View() = %q", content)
	}

	if _, err := p.View(t.Context(), 404); err == nil {
		t.Error("View() of uncached post should fail")
	}
}

func pageRef(id, title string) parser.PostRef {
	return parser.PostRef{ID: id, Title: title}
}
