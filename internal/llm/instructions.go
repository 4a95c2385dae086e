package llm

// InstructionType classifies what kind of response the current conversation
// calls for. Values outside the known constants may come back from the
// classifier; callers branch on equality with InstructionOperation and treat
// everything else as general conversation.
type InstructionType string

const (
	InstructionOperation InstructionType = "operation"
	InstructionDefault   InstructionType = "default"
)

// System instructions sent alongside conversation history for each of the
// runtime's classification and generation capabilities.
const (
	instructionPersonalData = `You are a data-protection classifier. Decide whether the following text ` +
		`contains personal data (names, addresses, phone numbers, email addresses, ` +
		`identification numbers, financial or health details). Answer with exactly ` +
		`one word: true or false.`

	instructionIdentifyType = `Classify the intent of this conversation. Answer with exactly one word: ` +
		`"operation" if the user is asking the assistant to perform a concrete ` +
		`operation such as creating, updating or scheduling something, otherwise "default".`

	instructionOperationSchema = `Extract the operation the user is requesting as a JSON object describing ` +
		`the operation name and its parameters. Respond with JSON only. Respond ` +
		`with an empty JSON object {} if no concrete operation is requested.`

	instructionOperationSuccess = `The requested operation has been understood and prepared. Write a short, ` +
		`friendly confirmation for the user describing what will happen.`

	instructionGeneral = `You are blueVi, a helpful assistant. Answer the user's message using the ` +
		`conversation so far.`

	instructionGrammarCorrection = `Correct any spelling or grammar mistakes in the following text. Respond ` +
		`with the corrected text only, without commentary.`

	instructionAnonymize = `Anonymize the following text: replace every piece of personal data with a ` +
		`neutral placeholder and respond with the anonymized text only.`
)
