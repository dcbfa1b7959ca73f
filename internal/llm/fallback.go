package llm

import "strings"

type cannedReply struct {
	triggers []string
	text     string
}

// Checked in order; the first reply whose trigger appears in the message wins.
var cannedReplies = []cannedReply{
	{[]string{"pasta", "spaghetti"}, "Pasta is a great pick! Would you like a classic tomato sauce, a creamy alfredo, or a bright pesto? Let me know about any dietary restrictions too."},
	{[]string{"chicken", "meat"}, "Chicken is wonderfully versatile! Are you thinking grilled, baked, or a curry? And how comfortable are you in the kitchen: beginner, intermediate, or advanced?"},
	{[]string{"vegetarian", "vegan"}, "I have plenty of plant-based ideas. What do you have on hand? Beans, lentils, tofu, or fresh vegetables all work well."},
	{[]string{"quick", "fast"}, "Short on time? I can suggest dishes that take 30 minutes or less. Which ingredients do you have available?"},
	{[]string{"dessert", "sweet"}, "Something sweet it is! Cakes, cookies, puddings, or a frozen treat? Tell me what baking supplies you have."},
}

const genericReply = "I'm here to help you cook something great! To tailor a recipe, tell me:\n\n" +
	"1. Which ingredients you have\n" +
	"2. Any dietary preferences or restrictions\n" +
	"3. Your cooking skill level\n" +
	"4. How much time you have\n"

// FallbackResponse returns a deterministic canned reply chosen by keyword.
func FallbackResponse(message string) string {
	low := strings.ToLower(message)
	for _, r := range cannedReplies {
		for _, t := range r.triggers {
			if strings.Contains(low, t) {
				return r.text
			}
		}
	}
	return genericReply
}
