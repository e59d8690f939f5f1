package taskform

// shouldConfirmDiscard reports whether closing would lose work: edited
// fields, images uploaded this session, or any attachment on a dialog that
// has not been saved yet.
func shouldConfirmDiscard(dirty bool, att *Attachments, kind ModeKind) bool {
	return dirty || att.HasNew() || (att.Len() > 0 && kind != ModeEdit)
}

// ShouldConfirmDiscard reports whether a close request needs confirmation.
func (c *Controller) ShouldConfirmDiscard() bool {
	return shouldConfirmDiscard(c.store.Dirty(), c.attachments, c.mode.Kind())
}

// RequestClose asks to close the dialog. It closes immediately and returns
// true when nothing would be lost; otherwise it shows the discard
// confirmation and returns false. Close requests are ignored while a
// submission is in flight.
func (c *Controller) RequestClose() bool {
	if c.closed {
		return true
	}
	if c.router.state == StateSubmitting {
		c.logger.Debug("Close ignored while submitting")
		return false
	}
	if c.ShouldConfirmDiscard() {
		c.confirmingDiscard = true
		return false
	}
	c.finalize("closed")
	return true
}

// ShowingDiscardConfirmation reports whether the discard prompt is open.
func (c *Controller) ShowingDiscardConfirmation() bool {
	return c.confirmingDiscard
}

// ContinueEditing dismisses the discard prompt and keeps the dialog open.
func (c *Controller) ContinueEditing() {
	c.confirmingDiscard = false
}

// ConfirmDiscard resets the fields to their initial snapshot, drops the
// attachments, and closes the dialog.
func (c *Controller) ConfirmDiscard() {
	if c.closed {
		return
	}
	c.store.Reset()
	c.attachments.Clear()
	c.confirmingDiscard = false
	c.finalize("discarded")
}
