// Package invoicing contains the Invoicing bounded context.
// This context relays paid e-commerce orders into an external invoicing
// provider and issues credit notes against previously emitted invoices.
//
// Key concepts:
//   - Credential: identity + secret used to authenticate against the provider
//   - InvoiceSubmission: transient input describing one invoice to emit
//   - Catalog entries: payment methods, users (sellers) and taxes of a tenant
//   - InvoicingProvider: port implemented by the provider REST adapter
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package invoicing
