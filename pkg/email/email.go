package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Server is the SMTP account mail is sent through.
type Server struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
}

func (s Server) Send(to, subject, body string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("invalid email address: %s", to)
	}

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	return smtp.SendMail(addr, auth, s.Username, []string{to}, s.message(to, subject, body))
}

// headerBreaks strips line breaks so header values stay on one line.
var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func (s Server) message(to, subject, body string) []byte {
	from := s.Username
	if s.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.FromName, s.Username)
	}
	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		headerBreaks.Replace(from), headerBreaks.Replace(to), headerBreaks.Replace(subject), body))
}
