package storage

import (
	"testing"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
)

func TestRebind(t *testing.T) {
	pg := &SQLTemplateStore{dialect: DialectPostgres}
	if got := pg.rebind(`UPDATE t SET a = ?, b = ? WHERE id = ?`); got != `UPDATE t SET a = $1, b = $2 WHERE id = $3` {
		t.Errorf("postgres rebind = %q", got)
	}
	my := &SQLTemplateStore{dialect: DialectMySQL}
	if got := my.rebind(`SELECT ? `); got != `SELECT ? ` {
		t.Errorf("mysql rebind = %q", got)
	}
}

func TestTemplateDocRoundTrip(t *testing.T) {
	tpl := &domain.Template{
		ID:   "t1",
		Name: "Embed",
		PageConfig: domain.PageConfig{
			Elements: []domain.TemplateElement{{
				ID: "elem_000", Type: domain.ElementEmbed, ElementMode: domain.ElementModeDynamic,
				Tokens: []string{"id"}, Payload: domain.EmbedPayload{URL: "https://v.test/{{id}}"},
			}},
			TokenDefinitions: map[string]domain.TokenDefinition{"id": {Type: domain.TokenTypeString, Label: "Id"}},
		},
	}
	d, err := toDoc(tpl)
	if err != nil {
		t.Fatal(err)
	}
	back, err := d.toTemplate()
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := back.PageConfig.Elements[0].Payload.(domain.EmbedPayload); !ok || e.URL != "https://v.test/{{id}}" {
		t.Errorf("payload = %#v", back.PageConfig.Elements[0].Payload)
	}
}
