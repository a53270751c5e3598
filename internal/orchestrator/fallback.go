package orchestrator

import (
	"strings"

	"github.com/dominicdesy/intelia-expert/internal/sufficiency"
)

var (
	failureMessages = map[string]string{
		sufficiency.LangFrench:  "Désolé, je n'ai pas pu traiter votre question pour le moment. Pouvez-vous réessayer ou la reformuler en précisant la race et l'âge de vos oiseaux ?",
		sufficiency.LangEnglish: "Sorry, I could not process your question right now. Please try again, or rephrase it with the breed and age of your birds.",
		sufficiency.LangSpanish: "Lo siento, no pude procesar su pregunta en este momento. Inténtelo de nuevo o reformúlela indicando la raza y la edad de sus aves.",
	}
	emptyQuestionMessages = map[string]string{
		sufficiency.LangFrench:  "Je n'ai pas reçu de question. Que souhaitez-vous savoir sur votre élevage ?",
		sufficiency.LangEnglish: "I did not receive a question. What would you like to know about your flock?",
		sufficiency.LangSpanish: "No recibí ninguna pregunta. ¿Qué desea saber sobre su lote?",
	}
)

// failureMessage is returned when no tier produced an answer.
func failureMessage(language string) string {
	return failureMessages[sufficiency.NormalizeLanguage(language, "")]
}

func emptyQuestionMessage(language string) string {
	return emptyQuestionMessages[sufficiency.NormalizeLanguage(language, "")]
}

// clarificationText renders clarification questions as a bulleted message.
func clarificationText(language string, questions []string) string {
	var b strings.Builder
	b.WriteString(sufficiency.IntroMessage(language))
	for _, q := range questions {
		b.WriteString("\n- ")
		b.WriteString(q)
	}
	return b.String()
}
