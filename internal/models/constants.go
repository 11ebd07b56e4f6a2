package models

const (
	// TextPlaceholder is replaced by the source text when a prompt is rendered.
	TextPlaceholder = "{text}"
	ThinkTag        = `(?s)<think>.*?</think>`
)

var (
	DefaultTargetColumns = []string{
		"Introduction", "Uses", "Benefits", "Side Effects",
		"Most Common Side Effects", "Common Side Effects",
		"How to Use", "How it Works", "Safety Advice",
	}

	DefaultPromptTemplate = "Paraphrase clearly for direct publication, omit explanation or formatting:\n\n{text}"

	ColumnPrompts = map[string]string{
		"Introduction":             "Paraphrase the medical introduction below, rewording it to be unique and plagiarism-free, but keep it concise, accurate, and ready for patient education. Do not include introductions, explanations, or formatting. Return just the rewritten text:\n\n{text}",
		"Uses":                     "Paraphrase the 'Uses' section below as unique, plagiarism-free medical guidance. Only return text usable in production and skip all explanations or introductions:\n\n{text}",
		"Benefits":                 "Paraphrase the 'Benefits' info below in a concise, factual, and production-friendly way. No explanation, just reword and return improved content:\n\n{text}",
		"Side Effects":             "Paraphrase the 'Side Effects' section so that it is unique, clear, and suitable for direct publication. Return only the main body content:\n\n{text}",
		"Most Common Side Effects": "Paraphrase the 'Most Common Side Effects' info below for a patient handout. No descriptions, options, or meta explanation, just the final result:\n\n{text}",
		"Common Side Effects":      "Rewrite the 'Common Side Effects' text below as a unique, high-quality summary suitable for direct use on a medical information page. No headers or extra text, just the paraphrased result:\n\n{text}",
		"How to Use":               "Paraphrase the 'How to Use' instructions for a medicine in clear, direct, and production-ready language with no extra explanation:\n\n{text}",
		"How it Works":             "Paraphrase the medical 'How it Works' details into unique, publication-ready prose suitable for patient education. Return only the text, no headers or disclaimers:\n\n{text}",
		"Safety Advice":            "Rewrite the 'Safety Advice' below in a unique and plagiarism-free way suitable for production, omitting any extra headers or prefatory comments:\n\n{text}",
	}
)
