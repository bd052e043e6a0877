package models

// ViewSchema documents one whitelisted view: its name and the columns the
// generator may reference. Column lists are generation context only; access
// enforcement happens at the table-reference level in the validator.
type ViewSchema struct {
	Name        string
	Description string
	Columns     []string
}

// AllowedViews is the fixed view whitelist. Not configurable at runtime:
// the generator is told about exactly these, and the validator rejects any
// FROM/JOIN target outside them.
var AllowedViews = []ViewSchema{
	{
		Name:        "vw_vendas",
		Description: "contratos fechados (vendas) com valores e margens",
		Columns:     []string{"id", "cliente", "vendedor", "data", "valor_total", "custo_total", "margem_pct", "tipo_piso", "area_m2", "cidade"},
	},
	{
		Name:        "vw_propostas",
		Description: "propostas emitidas e seus status",
		Columns:     []string{"id", "cliente", "vendedor", "data", "valor_total", "status", "tipo_piso", "area_m2", "validade"},
	},
	{
		Name:        "vw_leads",
		Description: "leads do funil comercial por estágio",
		Columns:     []string{"id", "nome", "origem", "estagio", "data", "valor_estimado", "responsavel", "cidade"},
	},
	{
		Name:        "vw_visitas",
		Description: "visitas técnicas agendadas e realizadas",
		Columns:     []string{"id", "cliente", "tecnico", "data", "status", "endereco", "cidade"},
	},
	{
		Name:        "vw_obras",
		Description: "obras de instalação em andamento e concluídas",
		Columns:     []string{"id", "cliente", "equipe", "data", "data_inicio", "data_fim", "status", "area_m2", "tipo_piso"},
	},
	{
		Name:        "vw_financeiro",
		Description: "lançamentos financeiros (receitas e despesas)",
		Columns:     []string{"id", "data", "categoria", "tipo", "valor", "receita", "despesa", "status"},
	},
	{
		Name:        "vw_clientes",
		Description: "clientes cadastrados e seu histórico agregado",
		Columns:     []string{"id", "nome", "cidade", "data", "total_compras", "valor_total", "ultima_compra"},
	},
}

// AllowedViewNames returns just the names of the whitelisted views.
func AllowedViewNames() []string {
	names := make([]string, len(AllowedViews))
	for i, v := range AllowedViews {
		names[i] = v.Name
	}
	return names
}

// IsAllowedView reports whether name is in the whitelist.
func IsAllowedView(name string) bool {
	for _, v := range AllowedViews {
		if v.Name == name {
			return true
		}
	}
	return false
}
