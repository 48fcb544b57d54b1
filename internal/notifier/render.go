package notifier

import (
	"fmt"
	"strings"

	"github.com/rotadireta/automation/internal/domain"
)

const (
	dateLayout = "02/01/2006"
	timeLayout = "15:04"
)

func renderMission(m *domain.Mission) (subject, body string) {
	subject = fmt.Sprintf("Lembrete: missão em %s para %s", m.ScheduledAt.Format(dateLayout), m.ClientName)

	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s!\n\n", displayName(m.DriverName))
	fmt.Fprintf(&b, "Você tem uma missão agendada para amanhã:\n\n")
	fmt.Fprintf(&b, "Data: %s\n", m.ScheduledAt.Format(dateLayout))
	fmt.Fprintf(&b, "Horário: %s\n", m.ScheduledAt.Format(timeLayout))
	fmt.Fprintf(&b, "Cliente: %s\n", m.ClientName)
	fmt.Fprintf(&b, "Rota: %s → %s\n", m.Origin, m.Destination)
	fmt.Fprintf(&b, "Veículo: %s\n", m.VehiclePlate)

	return subject, b.String()
}

func renderFine(f *domain.Fine) (subject, body string) {
	subject = fmt.Sprintf("Multa do veículo %s vence em %s", f.VehiclePlate, f.DueDate.Format(dateLayout))

	var b strings.Builder
	fmt.Fprintf(&b, "Atenção: multa com vencimento próximo.\n\n")
	fmt.Fprintf(&b, "Veículo: %s\n", f.VehiclePlate)
	fmt.Fprintf(&b, "Descrição: %s\n", f.Description)
	fmt.Fprintf(&b, "Valor: R$ %.2f\n", f.Amount)
	fmt.Fprintf(&b, "Vencimento: %s\n", f.DueDate.Format(dateLayout))

	return subject, b.String()
}

func displayName(name string) string {
	if name == "" {
		return "motorista"
	}
	return name
}
