package vision

// PromptTemplate names a built-in analysis prompt.
type PromptTemplate string

const (
	PromptStandard        PromptTemplate = "standard"
	PromptDetailed        PromptTemplate = "detailed"
	PromptConfidenceCheck PromptTemplate = "confidence_check"
)

var prompts = map[PromptTemplate]string{
	PromptStandard: `
Analyze this image of a medication and extract the following information:

1. **Medication Name**: The brand name or generic name visible on the medication or packaging
2. **Dosage**: The strength/dosage information (e.g., 200mg, 500mg, 10mg/5ml)
3. **Confidence Level**: Your confidence in the identification (high, medium, or low)

Instructions:
- If multiple medications are visible, focus on the most prominent one
- If the image is unclear or no medication is identifiable, clearly state this
- Be specific about what you can see and what you cannot determine
- If you can see partial information, mention what is visible

Please format your response clearly with the medication name, dosage, and confidence level.
`,
	PromptDetailed: `
Perform a comprehensive analysis of this medication image and provide detailed information:

1. **Medication Identification**:
   - Brand name (if visible)
   - Generic name (if identifiable)
   - Manufacturer (if visible)

2. **Dosage Information**:
   - Strength/dosage (e.g., 200mg, 500mg)
   - Form (tablet, capsule, liquid, etc.)
   - Quantity visible (if applicable)

3. **Visual Characteristics**:
   - Color and shape
   - Markings, imprints, or numbers
   - Packaging type (bottle, blister pack, etc.)

4. **Image Quality Assessment**:
   - Clarity of the image (good, fair, poor)
   - Lighting conditions
   - Any factors affecting identification

5. **Confidence Assessment**:
   - Overall confidence level (high, medium, low)
   - Specific aspects you're confident about
   - Areas of uncertainty

Please be thorough and specific in your analysis.
`,
	PromptConfidenceCheck: `
Analyze this medication image with a focus on confidence assessment:

1. **What can you identify with HIGH confidence?**
   - Clearly visible text, numbers, or markings
   - Obvious visual characteristics

2. **What can you identify with MEDIUM confidence?**
   - Partially visible or somewhat unclear elements
   - Reasonable inferences based on visible features

3. **What is UNCERTAIN or LOW confidence?**
   - Unclear, blurry, or partially obscured elements
   - Assumptions that cannot be verified from the image

4. **Overall Assessment**:
   - Primary medication name (if identifiable)
   - Dosage information (if visible)
   - Overall confidence level for the identification

Please be honest about limitations and uncertainties in the identification.
`,
}

// Prompt returns the text of a built-in template, falling back to the
// standard prompt for unknown names.
func Prompt(name PromptTemplate) string {
	if p, ok := prompts[name]; ok {
		return p
	}
	return prompts[PromptStandard]
}
