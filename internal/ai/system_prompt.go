package ai

const systemPrompt = "Keep TODO titles short, ideally within 7 words"

const mainTaskSchema = `{"type":"object","properties":{"title":{"type":"string"},"description":{"type":"string"},"priority":{"type":"string"}}}`

const subtasksSchema = `{"subtasks":[{"title":{"type":"string"},"order":{"type":"int"}}]}`
