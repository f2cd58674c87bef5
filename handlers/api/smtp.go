package api

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand"
	"net/smtp"
	"os"
	"strings"
	"time"

	"dashmail/composer"
	"dashmail/config"
	"dashmail/utils"
)

// SMTPTransport delivers payloads over SMTP. It implements
// composer.Transport for both immediate sends and the dispatcher.
type SMTPTransport struct {
	server      string
	port        int
	username    string
	password    string
	from        string
	useSTARTTLS bool
}

// NewSMTPTransport creates an SMTP transport from the service configuration
func NewSMTPTransport(cfg *config.Config) *SMTPTransport {
	return &SMTPTransport{
		server:      cfg.SMTP.Server,
		port:        cfg.SMTP.GetPort(),
		username:    cfg.SMTP.Username,
		password:    cfg.SMTP.Password,
		from:        cfg.SMTP.From,
		useSTARTTLS: cfg.SMTP.UseSTARTTLS,
	}
}

// Send delivers one payload. The message is multipart/mixed when
// attachments are present, with a nested multipart/alternative carrying
// plain-text and HTML renditions of the body.
func (t *SMTPTransport) Send(p *composer.Payload) error {
	addr := fmt.Sprintf("%s:%d", t.server, t.port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer client.Close()

	domain := domainFromAddress(t.from)
	if err := client.Hello(domain); err != nil {
		return fmt.Errorf("hello failed: %w", err)
	}

	if t.useSTARTTLS {
		tlsConfig := &tls.Config{ServerName: t.server}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}

	auth := smtp.PlainAuth("", t.username, t.password, t.server)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth failed: %w", err)
	}

	if err := client.Mail(t.from); err != nil {
		return fmt.Errorf("mail from failed: %w", err)
	}
	if err := client.Rcpt(p.To); err != nil {
		return fmt.Errorf("rcpt to failed: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("data failed: %w", err)
	}

	if err := t.writeMessage(writer, p, domain); err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("data close failed: %w", err)
	}

	utils.Log.Info("Message delivered: to=%s subject=%s", p.To, p.Subject)
	return client.Quit()
}

func (t *SMTPTransport) writeMessage(writer io.Writer, p *composer.Payload, domain string) error {
	mixedBoundary := fmt.Sprintf("mixed-%s", generateBoundary())
	altBoundary := fmt.Sprintf("alt-%s", generateBoundary())

	headers := make(map[string]string)
	headers["Date"] = time.Now().Format(time.RFC1123Z)
	headers["From"] = t.from
	headers["To"] = p.To
	headers["Subject"] = p.Subject
	headers["MIME-Version"] = "1.0"
	headers["Message-ID"] = fmt.Sprintf("<%s@%s>", generateMessageID(), domain)
	if p.Important {
		headers["X-Priority"] = "1"
		headers["Importance"] = "high"
	}

	if len(p.Attachments) > 0 {
		headers["Content-Type"] = fmt.Sprintf("multipart/mixed; boundary=%q", mixedBoundary)
	} else {
		headers["Content-Type"] = fmt.Sprintf("multipart/alternative; boundary=%q", altBoundary)
	}

	var headerBuf bytes.Buffer
	for k, v := range headers {
		headerBuf.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	headerBuf.WriteString("\r\n")
	if _, err := writer.Write(headerBuf.Bytes()); err != nil {
		return err
	}

	if len(p.Attachments) > 0 {
		fmt.Fprintf(writer, "--%s\r\n", mixedBoundary)
		fmt.Fprintf(writer, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", altBoundary)
		writeAlternativePart(writer, p.Body, altBoundary)
		fmt.Fprintf(writer, "--%s--\r\n", altBoundary)

		for _, att := range p.Attachments {
			fmt.Fprintf(writer, "--%s\r\n", mixedBoundary)
			fmt.Fprintf(writer, "Content-Type: %s; name=%q\r\n", att.ContentType, att.Filename)
			fmt.Fprintf(writer, "Content-Disposition: attachment; filename=%q\r\n", att.Filename)
			fmt.Fprintf(writer, "Content-Transfer-Encoding: base64\r\n\r\n")
			writeBase64(writer, att.Data)
		}
		fmt.Fprintf(writer, "--%s--\r\n", mixedBoundary)
		return nil
	}

	writeAlternativePart(writer, p.Body, altBoundary)
	fmt.Fprintf(writer, "--%s--\r\n", altBoundary)
	return nil
}

func writeAlternativePart(w io.Writer, body string, boundary string) {
	// Plain text rendition for clients that cannot display HTML
	fmt.Fprintf(w, "--%s\r\n", boundary)
	fmt.Fprintf(w, "Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	fmt.Fprintf(w, "%s\r\n", utils.HTMLToText(body))

	// HTML version
	fmt.Fprintf(w, "--%s\r\n", boundary)
	fmt.Fprintf(w, "Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	fmt.Fprintf(w, "%s\r\n", body)
}

// writeBase64 encodes data in 76-character lines as required for MIME
func writeBase64(w io.Writer, data []byte) {
	b64 := base64.StdEncoding.EncodeToString(data)
	for i := 0; i < len(b64); i += 76 {
		end := i + 76
		if end > len(b64) {
			end = len(b64)
		}
		fmt.Fprintf(w, "%s\r\n", b64[i:end])
	}
}

func domainFromAddress(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}

func generateBoundary() string {
	return fmt.Sprintf("%x", rand.Int63())
}

// generateMessageID creates a unique Message-ID for the message
func generateMessageID() string {
	return fmt.Sprintf("%d.%d.%d",
		time.Now().UnixNano(),
		os.Getpid(),
		rand.Int63())
}
