package config

// Example is the starter config written by config-init. Every secret is
// an environment reference.
const Example = `{
  "version": "v0.0.1-DEV_EDITION",
  "server": {
    "name": "MCP Boilerplate",
    "description": "A remote MCP server with Google login and Stripe billing.",
    "provider": "google",
    "addr": ":8080",
    "baseURL": {"$env": "BASE_URL"},
    "allowedOrigins": ["http://localhost:6274"]
  },
  "auth": {
    "googleClientId": {"$env": "GOOGLE_CLIENT_ID"},
    "googleClientSecret": {"$env": "GOOGLE_CLIENT_SECRET"},
    "cookieEncryptionKey": {"$env": "COOKIE_ENCRYPTION_KEY"},
    "jwtSecret": {"$env": "JWT_SECRET"},
    "tokenTtl": "1h",
    "storage": "memory"
  },
  "stripe": {
    "secretKey": {"$env": "STRIPE_SECRET_KEY"},
    "webhookSecret": {"$env": "STRIPE_WEBHOOK_SECRET"},
    "oneTimePriceId": {"$env": "STRIPE_ONE_TIME_PRICE_ID"},
    "subscriptionPriceId": {"$env": "STRIPE_SUBSCRIPTION_PRICE_ID"},
    "meteredPriceId": {"$env": "STRIPE_METERED_PRICE_ID"},
    "meterEventName": "metered_add_usage"
  }
}
`
