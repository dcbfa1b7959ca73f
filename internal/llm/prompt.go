package llm

import (
	"fmt"
	"strings"
)

const persona = `You are a professional chef and recipe assistant. Your role is to:
- Help users create delicious recipes from the ingredients they have
- Give clear cooking instructions that are easy to follow
- Suggest ingredient substitutions when needed
- Respect dietary restrictions and preferences
- Share cooking tips and techniques

When you provide a recipe, include:
1. An ingredient list with measurements
2. Step-by-step instructions
3. Cooking time and difficulty level
4. Optional tips or variations

Keep responses concise but informative.
`

// Profile is the personalization block of a prompt.
type Profile struct {
	SkillLevel string
	Dietary    []string
	Allergies  []string
	Likes      []string
	Dislikes   []string
}

func (p *Profile) empty() bool {
	return p == nil || (p.SkillLevel == "" && len(p.Dietary) == 0 && len(p.Allergies) == 0 &&
		len(p.Likes) == 0 && len(p.Dislikes) == 0)
}

// Turn is one prior message of the conversation.
type Turn struct {
	Sender string // "user" or "ai"
	Text   string
}

// RecipeSpec asks for a complete recipe instead of a chat reply.
type RecipeSpec struct {
	Ingredients []string
	Preferences string
	Cuisine     string
	CookingTime string
	Servings    int
}

// Request is the input of a completion.
type Request struct {
	Profile *Profile
	History []Turn
	Message string
	Recipe  *RecipeSpec
}

// BuildPrompt renders the chat prompt: persona, profile, the last maxTurns
// history entries, then the new message.
func BuildPrompt(req Request, maxTurns int) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n")
	writeProfile(&b, req.Profile)

	hist := req.History
	if maxTurns >= 0 && len(hist) > maxTurns {
		hist = hist[len(hist)-maxTurns:]
	}
	for _, t := range hist {
		role := "Assistant"
		if t.Sender == "user" {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(t.Text))
	}
	fmt.Fprintf(&b, "User: %s\nAssistant:", strings.TrimSpace(req.Message))
	return b.String()
}

// BuildRecipePrompt renders the complete-recipe prompt.
func BuildRecipePrompt(spec RecipeSpec, p *Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a detailed recipe using these ingredients: %s.\n\n", strings.Join(spec.Ingredients, ", "))
	fmt.Fprintf(&b, "Preferences: %s\n", orDefault(spec.Preferences, "None"))
	if spec.Cuisine != "" {
		fmt.Fprintf(&b, "Cuisine: %s\n", spec.Cuisine)
	}
	skill := "intermediate"
	if p != nil && p.SkillLevel != "" {
		skill = p.SkillLevel
	}
	fmt.Fprintf(&b, "Skill level: %s\n", skill)
	fmt.Fprintf(&b, "Time available: %s\n", orDefault(spec.CookingTime, "30-60 minutes"))
	if spec.Servings > 0 {
		fmt.Fprintf(&b, "Servings: %d\n", spec.Servings)
	}
	b.WriteString("\n")
	writeProfile(&b, p)
	b.WriteString(`Start with the recipe title on the first line, then provide:
1. Servings
2. Prep time and cook time
3. Complete ingredient list with measurements
4. Step-by-step instructions
5. Approximate nutritional information
6. Chef's tips or variations
`)
	return b.String()
}

func writeProfile(b *strings.Builder, p *Profile) {
	if p.empty() {
		return
	}
	b.WriteString("About the cook:\n")
	if p.SkillLevel != "" {
		fmt.Fprintf(b, "- Skill level: %s\n", p.SkillLevel)
	}
	if len(p.Dietary) > 0 {
		fmt.Fprintf(b, "- Dietary restrictions (follow strictly): %s\n", strings.Join(p.Dietary, ", "))
	}
	if len(p.Allergies) > 0 {
		fmt.Fprintf(b, "- ALLERGIES: %s. This is a hard constraint: never include these ingredients or anything made from them, and flag cross-contamination risks.\n",
			strings.Join(p.Allergies, ", "))
	}
	if len(p.Likes) > 0 {
		fmt.Fprintf(b, "- Favourite ingredients: %s\n", strings.Join(p.Likes, ", "))
	}
	if len(p.Dislikes) > 0 {
		fmt.Fprintf(b, "- Dislikes (avoid unless asked): %s\n", strings.Join(p.Dislikes, ", "))
	}
	b.WriteString("\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
