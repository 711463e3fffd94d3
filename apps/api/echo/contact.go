package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core"
)

var contactSubject = "New Contact Message from CourseLogic Website"

type contactApi struct {
	conf     *core.Config
	mailSvc  core.EmailService
	validate *validator.Validate
}

func registerContactAPI(g *echo.Group, conf *core.Config, mailSvc core.EmailService, validate *validator.Validate) {
	api := contactApi{conf: conf, mailSvc: mailSvc, validate: validate}
	g.POST("/contact", api.send)
}

// send forwards a message from the website contact form to the support address.
func (api *contactApi) send(ctx echo.Context) error {
	var data ContactRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContactRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	from := mail.Address{Name: data.Name, Address: data.Email}
	api.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{api.conf.SupportEmail()},
		ReplyTo:      &from,
		Subject:      contactSubject,
		TemplateName: "contact",
		TemplateData: data,
	})

	return ctx.JSON(http.StatusOK, ContactResponse{
		Success: true,
		Message: "Your message has been sent successfully!",
	})
}

type (
	ContactRequest struct {
		Name    string `json:"name" validate:"required,notblank,max=120"`
		Email   string `json:"email" validate:"required,email"`
		Message string `json:"message" validate:"required,notblank,max=5000"`
	}

	ContactResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
)

func (r *ContactRequest) Validate(validate *validator.Validate) error {
	r.Name = core.CleanString(r.Name)
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.Message = core.CleanString(r.Message)
	return validate.Struct(r)
}
