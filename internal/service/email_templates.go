package service

import "fmt"

func confirmationEmailTemplate(name, link, appName string) (string, string) {
	subject := fmt.Sprintf("Confirm your %s account", appName)
	body := fmt.Sprintf(`Hi %s,

Welcome to %s! Open this link on your phone to confirm your email and sign in:
%s

This link expires in 24 hours and can only be used once.

If you didn't sign up, you can safely ignore this email.

Best,
The %s Team`, name, appName, link, appName)

	return subject, body
}

func welcomeEmailTemplate(name, appName string) (string, string) {
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Your email is verified and your campus profile is ready.

Share notes in the library, post to the feed and keep track of campus events.

Best,
The %s Team`, name, appName)

	return subject, body
}
