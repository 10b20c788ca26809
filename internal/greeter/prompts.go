package greeter

import "fmt"

const systemPrompt = "You are a friendly chatbot assisting with ID card generation. Keep responses very short and friendly."

func greetingPrompt(name string) string {
	return fmt.Sprintf("Generate a very brief (max 100 characters) welcome message for %s who is creating their ID card. Don't include any hints about other questions.", name)
}

func completionPrompt(name string) string {
	return fmt.Sprintf("Generate a very brief (max 100 characters) completion message for %s who has finished creating their ID card. Include that they can download it now.", name)
}
