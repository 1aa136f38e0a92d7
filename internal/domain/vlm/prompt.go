package vlm

// IdentificationPrompt is sent with every image. The parser recognises the labels it asks for.
const IdentificationPrompt = "Analyze this image of food. Identify all food items in the image and provide a combined nutritional estimate for all of them. " +
	"Present the total nutritional estimates clearly in a structured format. Each item should be on a new line, like this:\n" +
	"Food Item: [list of all food items]\n" +
	"Calories: [total value]\n" +
	"Protein: [total value]\n" +
	"Carbohydrates: [total value]\n" +
	"Fat: [total value]"
