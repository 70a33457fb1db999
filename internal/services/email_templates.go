package services

// PasswordResetEmailData feeds the reset code template
type PasswordResetEmailData struct {
	Name string
	Code string
}

const passwordResetEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            margin: 0;
            padding: 0;
            background-color: #f5f5f5;
        }
        .container {
            max-width: 600px;
            margin: 40px auto;
            background: white;
            border-radius: 8px;
            overflow: hidden;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
        }
        .header {
            background: linear-gradient(135deg, #2563eb 0%, #1e40af 100%);
            color: white;
            padding: 40px 30px;
            text-align: center;
        }
        .header h1 {
            margin: 0;
            font-size: 28px;
            font-weight: 600;
        }
        .content {
            padding: 40px 30px;
        }
        .content p {
            margin: 0 0 20px 0;
            font-size: 16px;
            color: #4a5568;
        }
        .code-box {
            text-align: center;
            background: #f8fafc;
            border: 2px dashed #cbd5e1;
            border-radius: 8px;
            padding: 24px;
            margin: 30px 0;
            font-size: 32px;
            font-weight: 700;
            letter-spacing: 8px;
            color: #1e40af;
        }
        .warning {
            background: #fef3c7;
            border-left: 4px solid #f59e0b;
            padding: 16px;
            margin: 24px 0;
            border-radius: 4px;
        }
        .warning p {
            color: #78350f;
            margin: 0;
            font-size: 14px;
        }
        .footer {
            padding: 24px 30px;
            text-align: center;
            font-size: 13px;
            color: #94a3b8;
            border-top: 1px solid #e2e8f0;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Réinitialisation du mot de passe</h1>
        </div>
        <div class="content">
            <p>Bonjour {{.Name}},</p>
            <p>Une réinitialisation du mot de passe de votre compte a été demandée.
               Saisissez le code ci-dessous dans l'application pour continuer :</p>
            <div class="code-box">{{.Code}}</div>
            <div class="warning">
                <p>Ce code expire dans une heure. Si vous n'êtes pas à l'origine de
                   cette demande, ignorez ce message.</p>
            </div>
        </div>
        <div class="footer">
            Registre des visites
        </div>
    </div>
</body>
</html>`
