// Package mail delivers inquiry mails over SMTP. It renders the confirmation
// and notification mails from plain-text templates and sends them through a
// Transport, which the SMTP implementation backs with gomail.
package mail
