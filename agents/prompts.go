package agents

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/madhatter5501/WorkOS/kanban"
)

// ProjectName is how prompts refer to the product the team is building.
const ProjectName = "Oracle Navigator"

var templateFuncs = template.FuncMap{
	"project": func() string { return ProjectName },
}

var reportPrompt = template.Must(template.New("report").Funcs(templateFuncs).Parse(`
Tu es un assistant de gestion de projet expert pour une équipe construisant une application mobile "{{project}}".
Analyse les tâches suivantes et génère un rapport JSON strict.

Tâches:
{{range .}}- {{.Title}} ({{.Status}}) assigné à {{.Assignee.Name}} dans le secteur {{.Sector}}. Deadline: {{.Deadline}}. Description: {{.Description}}
{{end}}
INSTRUCTIONS:
1. Génère un résumé executif du travail accompli et du reste à faire.
2. Identifie des risques potentiels (délais, surcharge, manque de clarté).
3. Propose des prochaines étapes logiques.
4. Génère 3 Key Performance Indicators (KPIs) pertinents. IMPORTANT: Pour le champ "trend", utilise UNIQUEMENT les valeurs "up", "down" ou "neutral".
5. Génère des données pour un graphique d'avancement (0 à 100 pour le progrès estimé selon le statut).

Réponds UNIQUEMENT avec l'objet JSON, sans texte avant ni après.
`))

var strategyPrompt = template.Must(template.New("strategy").Funcs(templateFuncs).Parse(`
Analyse la tâche suivante pour un projet d'application mobile d'entreprise "{{project}}".
Titre: {{.Title}}
Description: {{.Description}}

Estime:
1. Score d'Impact Business (0-100) : À quel point cela apporte de la valeur ?
2. Score d'Effort (1-10) : Complexité estimée.
3. Thème Stratégique : Choisis le plus pertinent parmi [Acquisition, Rétention, Revenus, Tech Debt, UX, Sécurité, Feature].
4. Rationale : Une phrase courte justifiant le score.

Réponds en JSON strict.
`))

// ReportPrompt renders the project report prompt, one line per task.
func ReportPrompt(tasks []kanban.Task) (string, error) {
	return render(reportPrompt, tasks)
}

// StrategyPrompt renders the single-task scoring prompt.
func StrategyPrompt(title, description string) (string, error) {
	return render(strategyPrompt, struct{ Title, Description string }{title, description})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
